package components

import (
	"image"

	"github.com/yohamta/donburi"

	"github.com/automoto/spraytag-mp/shared/netconfig"
)

// SprayData is a decal surface in the world carrying a participant's spray
// image. The image is pushed here by the asset directory as soon as it is
// decoded; the rendering layer reads it, this core never draws.
type SprayData struct {
	Owner netconfig.NetworkID
	Image image.Image
}

var Spray = donburi.NewComponentType[SprayData]()
