package keybswitch

import (
	"testing"

	"go.viam.com/test"
)

func TestCatalogMatches(t *testing.T) {
	catalog := Catalog{
		{Name: "KB1", VendorID: "046d", ModelID: "c31c"},
		{Name: "KB2", VendorID: "04d9", ModelID: "0169"},
		{Name: "KB1 again", VendorID: "046d", ModelID: "c31c"},
	}

	for _, tc := range []struct {
		name           string
		vendor, model  string
		expectedResult bool
	}{
		{"first entry", "046d", "c31c", true},
		{"second entry", "04d9", "0169", true},
		{"vendor of one, model of another", "046d", "0169", false},
		{"case sensitive", "046D", "c31c", false},
		{"unknown", "1234", "5678", false},
		{"absent vendor", "", "c31c", false},
		{"absent model", "046d", "", false},
		{"both absent", "", "", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			test.That(t, catalog.Matches(tc.vendor, tc.model), test.ShouldEqual, tc.expectedResult)
		})
	}
}

func TestCatalogAbsentNeverMatches(t *testing.T) {
	catalog := Catalog{
		{Name: "blank", VendorID: "", ModelID: ""},
		{Name: "half", VendorID: "046d", ModelID: ""},
	}

	test.That(t, catalog.Matches("", ""), test.ShouldBeFalse)
	test.That(t, catalog.Matches("046d", ""), test.ShouldBeFalse)
	test.That(t, Catalog(nil).Matches("046d", "c31c"), test.ShouldBeFalse)
}

func TestCatalogLookupReturnsFirst(t *testing.T) {
	catalog := Catalog{
		{Name: "first", VendorID: "046d", ModelID: "c31c"},
		{Name: "second", VendorID: "046d", ModelID: "c31c"},
	}

	kb, ok := catalog.Lookup("046d", "c31c")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, kb.Name, test.ShouldEqual, "first")
}

func TestCatalogKnown(t *testing.T) {
	catalog := Catalog{{Name: "KB1", VendorID: "046d", ModelID: "c31c"}}

	keys := catalog.Known([]DeviceID{
		{VendorID: "1d6b", ModelID: "0002"},
		{VendorID: "046d", ModelID: "c31c"},
		{VendorID: "046d"},
	})
	test.That(t, keys, test.ShouldResemble, []PresenceKey{"046d:c31c"})
}
