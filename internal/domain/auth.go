package domain

import "unicode/utf8"

// Credentials are submitted from the LOGIN view.
type Credentials struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required"`
}

// RegistrationDraft lives only while the REGISTER and OTP views are open.
type RegistrationDraft struct {
	Username        string `json:"username" validate:"required,min=3,max=64"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required,min=7,max=20"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// OTPLength is the exact length a verification code must have.
const OTPLength = 6

// OTPComplete reports whether code can be submitted. Length counts
// characters, not bytes.
func OTPComplete(code string) bool {
	return utf8.RuneCountInString(code) == OTPLength
}

// OTPDigits reports whether code is exactly six ASCII digits, the only form
// accepted without a backend to check it.
func OTPDigits(code string) bool {
	if len(code) != OTPLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
