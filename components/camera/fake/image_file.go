package fake

import (
	"context"

	"go.viam.com/utils"

	"github.com/ysay/zari-vision/components/camera"
	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/resource"
	"github.com/ysay/zari-vision/rimage"
)

// FileModel is the name of the still image camera model.
const FileModel = "image_file"

func init() {
	camera.RegisterModel(FileModel, resource.Registration[camera.Source]{
		Constructor: func(ctx context.Context, attrs config.AttributeMap, logger logging.Logger) (camera.Source, error) {
			conf, err := resource.NativeConfig[fileSourceConfig](attrs)
			if err != nil {
				return nil, err
			}
			return &fileSource{path: conf.Path, frames: conf.Frames, logger: logger}, nil
		},
	})
}

// fileSourceConfig is the attribute struct for fileSource.
type fileSourceConfig struct {
	Path   string `json:"color_image_file_path"`
	Frames int    `json:"frames,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *fileSourceConfig) Validate(path string) error {
	if c.Path == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "color_image_file_path")
	}
	return nil
}

// fileSource serves the image at path. The file is read on every Open so a missing or broken
// file surfaces as an open failure.
type fileSource struct {
	path   string
	frames int
	logger logging.Logger
}

func (fs *fileSource) Open(ctx context.Context) (camera.Stream, error) {
	img, err := rimage.ReadImageFromFile(fs.path)
	if err != nil {
		return nil, err
	}
	fs.logger.Debugw("opened image file", "path", fs.path, "bounds", img.Bounds())
	return newStillStream(img, fs.frames), nil
}
