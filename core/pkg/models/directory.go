package models

// DirectoryKeyResponse is the nicknym lookup payload.
type DirectoryKeyResponse struct {
	Address     string `json:"address,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	OpenPGP     string `json:"openpgp"`
}
