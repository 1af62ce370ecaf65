package keybswitch

// Catalog is the configured set of keyboards. It is never mutated after it
// has been built.
type Catalog []KeyboardSpec

// Matches reports whether some keyboard in the catalog has exactly this
// vendor and model. Absent properties never match.
func (c Catalog) Matches(vendorID, modelID string) bool {
	_, ok := c.Lookup(vendorID, modelID)
	return ok
}

// Lookup returns the first keyboard with this vendor and model.
func (c Catalog) Lookup(vendorID, modelID string) (KeyboardSpec, bool) {
	if vendorID == "" || modelID == "" {
		return KeyboardSpec{}, false
	}

	for _, kb := range c {
		if kb.VendorID == vendorID && kb.ModelID == modelID {
			return kb, true
		}
	}

	return KeyboardSpec{}, false
}

// Known filters ids down to the presence keys of configured keyboards.
func (c Catalog) Known(ids []DeviceID) []PresenceKey {
	var keys []PresenceKey
	for _, id := range ids {
		if c.Matches(id.VendorID, id.ModelID) {
			keys = append(keys, id.Key())
		}
	}
	return keys
}

func (c Catalog) hasKey(key PresenceKey) bool {
	for _, kb := range c {
		if (DeviceID{VendorID: kb.VendorID, ModelID: kb.ModelID}).Key() == key {
			return true
		}
	}
	return false
}
