package metrics

import (
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
)

// BatchRecord is one row of a per-batch report
type BatchRecord struct {
	Epoch      int     `dataframe:"epoch"`
	Batch      int     `dataframe:"batch"`
	UpperRange float64 `dataframe:"upper_range"`
	RMSE       float64 `dataframe:"rmse"`
	PSNR       float64 `dataframe:"psnr"`
	SSIM       float64 `dataframe:"ssim"`
	NoiseSigma float64 `dataframe:"noise_sigma"`
}

// NewBatchRecord fills a record from the metrics of one batch
func NewBatchRecord(epoch, batch int, upperRange float64, m PairMetrics) BatchRecord {
	return BatchRecord{
		Epoch:      epoch,
		Batch:      batch,
		UpperRange: upperRange,
		RMSE:       m.RMSE,
		PSNR:       m.PSNR,
		SSIM:       m.SSIM,
		NoiseSigma: m.NoiseSigma,
	}
}

// Report collects per-batch records into a data frame
type Report struct {
	records []BatchRecord
}

// Add appends a record
func (r *Report) Add(rec BatchRecord) {
	r.records = append(r.records, rec)
}

// Len returns the number of records
func (r *Report) Len() int {
	return len(r.records)
}

// Frame returns the records as a data frame with one column per metric
func (r *Report) Frame() (dataframe.DataFrame, error) {
	if len(r.records) == 0 {
		return dataframe.DataFrame{}, errors.New("report has no records")
	}
	df := dataframe.LoadStructs(r.records)
	if df.Err != nil {
		return df, errors.Wrap(df.Err, "building report frame")
	}
	return df, nil
}

// Means returns the mean of every float column
func (r *Report) Means() (map[string]float64, error) {
	df, err := r.Frame()
	if err != nil {
		return nil, err
	}
	means := make(map[string]float64)
	for _, name := range []string{"upper_range", "rmse", "psnr", "ssim", "noise_sigma"} {
		means[name] = df.Col(name).Mean()
	}
	return means, nil
}

// WriteCSV writes the report with a header row
func (r *Report) WriteCSV(w io.Writer) error {
	df, err := r.Frame()
	if err != nil {
		return err
	}
	return errors.Wrap(df.WriteCSV(w), "writing report")
}
