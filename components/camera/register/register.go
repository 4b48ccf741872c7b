// Package register registers all camera models.
package register

import (
	// register camera models.
	_ "github.com/ysay/zari-vision/components/camera/fake"
	_ "github.com/ysay/zari-vision/components/camera/ffmpeg"
	_ "github.com/ysay/zari-vision/components/camera/videosource"
)
