package attachments

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"time"

	"golang.org/x/image/draw"

	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/models"
)

// PageRasterizer renders the first page of a PDF, no larger than maxSide pixels on either side.
type PageRasterizer interface {
	RasterizeFirstPage(ctx context.Context, path string, maxSide int) (image.Image, error)
}

// PdftoppmRasterizer shells out to poppler's pdftoppm.
type PdftoppmRasterizer struct {
	Command string
	Timeout time.Duration
}

var execCommandContext = exec.CommandContext

func (r PdftoppmRasterizer) RasterizeFirstPage(ctx context.Context, path string, maxSide int) (image.Image, error) {
	cmdName := r.Command
	if cmdName == "" {
		cmdName = "pdftoppm"
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := execCommandContext(ctx, cmdName, "-png", "-f", "1", "-l", "1", "-singlefile",
		"-scale-to", strconv.Itoa(maxSide), path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", cmdName, err, stderr.String())
	}
	return png.Decode(&stdout)
}

// LoadThumbnail returns a downscaled preview that fits the thumbnail box while
// keeping its aspect ratio, or nil when no preview can be produced.
func (s *Store) LoadThumbnail(ctx context.Context, fileName string, typ models.AttachmentType) image.Image {
	if err := checkFileName(fileName); err != nil {
		return nil
	}

	var (
		src image.Image
		err error
	)
	switch typ {
	case models.AttachmentImage:
		var data []byte
		data, err = s.Load(fileName)
		if err == nil {
			src, _, err = image.Decode(bytes.NewReader(data))
		}
	case models.AttachmentPDF:
		if s.rasterizer == nil {
			return nil
		}
		src, err = s.rasterizer.RasterizeFirstPage(ctx, s.path(fileName), s.thumbSize)
	default:
		return nil
	}
	if err != nil {
		logger.Warn("Failed to build thumbnail", "file", fileName, "error", err)
		return nil
	}
	return Fit(src, s.thumbSize)
}

// Fit scales src down so that neither side exceeds maxSide. Smaller images are returned as is.
func Fit(src image.Image, maxSide int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = maxSide
		nh = max(1, h*maxSide/w)
	} else {
		nh = maxSide
		nw = max(1, w*maxSide/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
