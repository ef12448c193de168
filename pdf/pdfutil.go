package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Validate checks that path is a readable PDF. Minor PDF format violations common
// in real-world files are tolerated.
func Validate(path string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("invalid pdf %s: %w", path, err)
	}
	return nil
}

func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("count pages of %s: %w", path, err)
	}
	return n, nil
}

// RemoveHeaderFooterCrop writes a copy of inputPath to outputPath with top and
// bottom margins, in points, cropped off every page.
func RemoveHeaderFooterCrop(inputPath, outputPath string, top, bottom float64) error {
	if top < 0 || bottom < 0 {
		return fmt.Errorf("crop margins must not be negative, got top=%.2f bottom=%.2f", top, bottom)
	}

	// margins in CSS order: top right bottom left
	box, err := model.ParseBox(fmt.Sprintf("%.2f 0 %.2f 0", top, bottom), types.POINTS)
	if err != nil {
		return fmt.Errorf("failed to parse crop box: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.CropFile(inputPath, outputPath, nil, box, conf); err != nil {
		return fmt.Errorf("failed to crop PDF: %w", err)
	}
	return nil
}
