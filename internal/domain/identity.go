package domain

// Identity is the authenticated principal reconstructed from a verified
// session token plus the current security stamp.
//
// TelegramID is carried as a string end-to-end; Telegram ids are 64-bit and
// would lose precision if they ever passed through a float-based JSON layer.
type Identity struct {
	UserID        string
	TelegramID    string
	Role          Role
	MerchantID    *string
	SecurityStamp string
	Capabilities  CapabilitySet
}

// Can reports whether the identity holds the capability.
func (i *Identity) Can(cap Capability) bool {
	if i == nil {
		return false
	}
	return i.Capabilities.Has(cap)
}
