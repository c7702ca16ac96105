package directory

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/yohamta/donburi"

	"github.com/automoto/spraytag-mp/components"
	"github.com/automoto/spraytag-mp/shared/netconfig"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type applied struct {
	target donburi.Entity
	img    image.Image
}

func newTestDirectory() (*Directory, *[]applied) {
	var calls []applied
	d := New(func(target donburi.Entity, img image.Image) {
		calls = append(calls, applied{target, img})
	})
	return d, &calls
}

func TestGetOrCreateLazy(t *testing.T) {
	d, _ := newTestDirectory()
	if d.Has(5) {
		t.Fatal("entry exists before first reference")
	}
	a := d.GetOrCreate(5)
	if a == nil || a.Image == nil {
		t.Fatal("created entry has no placeholder image")
	}
	if d.GetOrCreate(5) != a {
		t.Fatal("second GetOrCreate returned a different entry")
	}
	if d.Len() != 1 {
		t.Fatalf("Len = %d", d.Len())
	}
}

func TestAssignPushesToLiveTarget(t *testing.T) {
	d, calls := newTestDirectory()
	world := donburi.NewWorld()
	decal := world.Create(components.Spray)

	d.SetTarget(3, decal)
	if len(*calls) != 1 { // placeholder pushed on bind
		t.Fatalf("SetTarget produced %d applies", len(*calls))
	}

	if err := d.Assign(3, netconfig.FormatPNG, testPNG(t)); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("Assign with live target produced %d applies", len(*calls))
	}
	if (*calls)[1].target != decal {
		t.Fatal("image pushed onto wrong entity")
	}
}

func TestAssignWithoutTargetJustCaches(t *testing.T) {
	d, calls := newTestDirectory()
	if err := d.Assign(3, netconfig.FormatPNG, testPNG(t)); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if len(*calls) != 0 {
		t.Fatal("apply ran with no live target")
	}
	if !d.Has(3) {
		t.Fatal("assigned asset not cached")
	}
}

func TestAssignEmptyPayloadYieldsPlaceholder(t *testing.T) {
	d, _ := newTestDirectory()
	if err := d.Assign(3, netconfig.FormatRaw, nil); err != nil {
		t.Fatalf("Assign(empty): %v", err)
	}
	if d.GetOrCreate(3).Image == nil {
		t.Fatal("empty payload produced nil image")
	}
}

func TestAssignDecodeFailureKeepsEntry(t *testing.T) {
	d, _ := newTestDirectory()
	good := testPNG(t)
	if err := d.Assign(3, netconfig.FormatPNG, good); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := d.Assign(3, netconfig.FormatPNG, []byte("garbage")); err == nil {
		t.Fatal("garbage payload assigned without error")
	}
	if !bytes.Equal(d.GetOrCreate(3).Raw, good) {
		t.Fatal("failed assign disturbed the cached asset")
	}
}

func TestMembershipInvalidation(t *testing.T) {
	d, _ := newTestDirectory()
	d.GetOrCreate(1)
	d.GetOrCreate(2)
	d.GetOrCreate(3)

	// One participant leaves: only that entry goes.
	d.Remove(2)
	if d.Has(2) || !d.Has(1) || !d.Has(3) {
		t.Fatal("Remove cleared the wrong entries")
	}

	// A new participant joins: every entry goes.
	d.Reset()
	if d.Len() != 0 {
		t.Fatalf("Reset left %d entries", d.Len())
	}
}
