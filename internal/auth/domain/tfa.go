package domain

// TFAState is derived from the user's secret and enabled flag.
type TFAState int

const (
	TFANone        TFAState = iota // no secret
	TFAProvisioned                 // secret stored, not yet confirmed
	TFAActive                      // confirmed, required at login
)

func (s TFAState) String() string {
	switch s {
	case TFAProvisioned:
		return "provisioned"
	case TFAActive:
		return "active"
	default:
		return "none"
	}
}

// TFASetup is handed to the user once, when a secret is provisioned.
type TFASetup struct {
	Secret          string // base32, no padding
	ProvisioningURI string // otpauth://totp/...
	QRCodeDataURI   string // data:image/png;base64,...
}
