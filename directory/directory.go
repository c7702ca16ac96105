// Package directory caches per-participant derived assets, keyed by network
// identity, with lifecycle tied to session membership.
package directory

import (
	"fmt"
	"image"

	"github.com/yohamta/donburi"

	"github.com/automoto/spraytag-mp/shared/netconfig"
	"github.com/automoto/spraytag-mp/sprays"
)

// CachedAsset is everything derived from one participant's spray transfer:
// the raw payload, the decoded image, and (when one exists) the live decal
// entity the image has been pushed onto.
type CachedAsset struct {
	Raw    []byte
	Format netconfig.AssetFormat
	Image  image.Image

	target    donburi.Entity
	hasTarget bool
}

// ApplyFunc pushes a decoded image onto a live decal entity. Supplied by the
// session so the directory never touches world internals itself.
type ApplyFunc func(target donburi.Entity, img image.Image)

// Directory maps network identities to their cached assets. Entries are
// created lazily and invalidated by the session membership handlers. Not
// safe for concurrent use; it is owned by the session goroutine.
type Directory struct {
	entries map[netconfig.NetworkID]*CachedAsset
	apply   ApplyFunc
}

func New(apply ApplyFunc) *Directory {
	return &Directory{
		entries: make(map[netconfig.NetworkID]*CachedAsset),
		apply:   apply,
	}
}

// GetOrCreate returns the entry for id, creating an empty one with the
// placeholder image on first reference.
func (d *Directory) GetOrCreate(id netconfig.NetworkID) *CachedAsset {
	if a, ok := d.entries[id]; ok {
		return a
	}
	a := &CachedAsset{Image: sprays.Placeholder()}
	d.entries[id] = a
	return a
}

// Assign decodes a completed transfer payload into owner's cached asset. If
// the owner currently has a live decal entity, the fresh image is pushed
// onto it immediately. A decode failure leaves the existing entry untouched.
func (d *Directory) Assign(owner netconfig.NetworkID, format netconfig.AssetFormat, raw []byte) error {
	img, err := sprays.Decode(raw)
	if err != nil {
		return fmt.Errorf("asset for %d: %w", owner, err)
	}

	a := d.GetOrCreate(owner)
	a.Raw = raw
	a.Format = format
	a.Image = img
	if a.hasTarget {
		d.apply(a.target, img)
	}
	return nil
}

// SetTarget binds owner's cached asset to a live decal entity and pushes the
// current image onto it.
func (d *Directory) SetTarget(owner netconfig.NetworkID, target donburi.Entity) {
	a := d.GetOrCreate(owner)
	a.target = target
	a.hasTarget = true
	d.apply(target, a.Image)
}

// ClearTarget drops the live-entity binding without touching the cached
// bytes, for when the decal despawns but the participant remains.
func (d *Directory) ClearTarget(owner netconfig.NetworkID) {
	if a, ok := d.entries[owner]; ok {
		a.hasTarget = false
	}
}

// Remove drops one participant's entry; used when that participant leaves.
func (d *Directory) Remove(id netconfig.NetworkID) {
	delete(d.entries, id)
}

// Reset drops every entry. Used when a new participant joins: it cannot have
// observed prior broadcasts, so nobody's cache can be trusted to reach it.
func (d *Directory) Reset() {
	clear(d.entries)
}

// Has reports whether id currently has a cached entry.
func (d *Directory) Has(id netconfig.NetworkID) bool {
	_, ok := d.entries[id]
	return ok
}

func (d *Directory) Len() int {
	return len(d.entries)
}
