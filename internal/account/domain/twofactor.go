package domain

// TwoFactorEnrollment is the provisioning descriptor returned when a second
// factor is enabled. URI is the standard otpauth:// form for QR encoding.
type TwoFactorEnrollment struct {
	Secret  string `json:"secret"` // Base32 encoded TOTP secret
	URI     string `json:"uri"`    // otpauth://totp/... provisioning URI
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}
