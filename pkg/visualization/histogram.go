package visualization

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Series is one named set of voxel intensities
type Series struct {
	Name   string
	Values []float64
}

var seriesColors = []color.NRGBA{
	{R: 31, G: 119, B: 180, A: 140},
	{R: 255, G: 127, B: 14, A: 140},
	{R: 44, G: 160, B: 44, A: 140},
}

// IntensityHistogram plots normalized histograms of the series on one set of axes.
func IntensityHistogram(title string, bins int, series ...Series) (*plot.Plot, error) {
	if bins <= 0 {
		return nil, errors.Errorf("bins must be positive, got %d", bins)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "intensity"
	p.Y.Label.Text = "density"

	for i, s := range series {
		if len(s.Values) == 0 {
			return nil, errors.Errorf("series %q is empty", s.Name)
		}
		h, err := plotter.NewHist(plotter.Values(s.Values), bins)
		if err != nil {
			return nil, errors.Wrapf(err, "histogram of %s", s.Name)
		}
		h.Normalize(1)
		c := seriesColors[i%len(seriesColors)]
		h.FillColor = c
		h.LineStyle.Color = color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
		p.Add(h)
		p.Legend.Add(s.Name, h)
	}
	return p, nil
}

// SaveHistogram renders IntensityHistogram to path; the format follows the extension
func SaveHistogram(path, title string, bins int, series ...Series) error {
	p, err := IntensityHistogram(title, bins, series...)
	if err != nil {
		return err
	}
	return errors.Wrapf(p.Save(6*vg.Inch, 4*vg.Inch, path), "saving %s", path)
}
