package models

// RegisterRequest is sent by a worker to the gateway's /register endpoint.
type RegisterRequest struct {
	Interface   string `json:"interface"    validate:"required"`
	CallbackURL string `json:"callback_url" validate:"required,url"`
	Version     string `json:"version"      validate:"required"`
}

// RegistrationStatus is the gateway's view of the registered worker.
type RegistrationStatus struct {
	Registered  bool   `json:"registered"`
	CallbackURL string `json:"callback_url,omitempty"`
	Version     string `json:"version"`
}
