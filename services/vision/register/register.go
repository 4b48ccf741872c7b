// Package register registers all detector models.
package register

import (
	// register detector models.
	_ "github.com/ysay/zari-vision/services/vision/fake"
	_ "github.com/ysay/zari-vision/services/vision/remote"
)
