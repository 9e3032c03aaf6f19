// Package export writes result tables in columnar formats.
package export

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
	"github.com/sirupsen/logrus"

	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

var (
	pdrSchema = arrow.NewSchema([]arrow.Field{
		{Name: "node", Type: arrow.PrimitiveTypes.Int64},
		{Name: "sent_trials", Type: arrow.PrimitiveTypes.Int64},
		{Name: "sent", Type: arrow.PrimitiveTypes.Int64},
		{Name: "recv", Type: arrow.PrimitiveTypes.Int64},
		{Name: "pdr", Type: arrow.PrimitiveTypes.Float64},
	}, nil)

	dutyCycleSchema = arrow.NewSchema([]arrow.Field{
		{Name: "node", Type: arrow.PrimitiveTypes.Int64},
		{Name: "total_ticks", Type: arrow.PrimitiveTypes.Uint64},
		{Name: "radio_ticks", Type: arrow.PrimitiveTypes.Uint64},
		{Name: "dc", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
)

// ParquetWriter writes result tables as Snappy-compressed Parquet files
type ParquetWriter struct {
	mem    memory.Allocator
	logger logrus.FieldLogger
}

// NewParquetWriter creates a writer using the default Go allocator
func NewParquetWriter(logger logrus.FieldLogger) *ParquetWriter {
	return &ParquetWriter{
		mem:    memory.DefaultAllocator,
		logger: logger,
	}
}

// WritePDR writes the per-node PDR table to path. NaN ratios are kept as NaN.
func (w *ParquetWriter) WritePDR(path string, nodes []types.NodePDR) error {
	b := array.NewRecordBuilder(w.mem, pdrSchema)
	defer b.Release()

	for _, n := range nodes {
		b.Field(0).(*array.Int64Builder).Append(int64(n.Node))
		b.Field(1).(*array.Int64Builder).Append(int64(n.SentTrials))
		b.Field(2).(*array.Int64Builder).Append(int64(n.Sent))
		b.Field(3).(*array.Int64Builder).Append(int64(n.Recv))
		b.Field(4).(*array.Float64Builder).Append(n.PDR)
	}

	rec := b.NewRecord()
	defer rec.Release()
	return w.write(path, pdrSchema, rec)
}

// WriteDutyCycle writes the per-node duty-cycle table to path
func (w *ParquetWriter) WriteDutyCycle(path string, nodes []types.NodeDutyCycle) error {
	b := array.NewRecordBuilder(w.mem, dutyCycleSchema)
	defer b.Release()

	for _, n := range nodes {
		b.Field(0).(*array.Int64Builder).Append(int64(n.Node))
		b.Field(1).(*array.Uint64Builder).Append(n.TotalTime)
		b.Field(2).(*array.Uint64Builder).Append(n.RadioTime)
		b.Field(3).(*array.Float64Builder).Append(n.DC)
	}

	rec := b.NewRecord()
	defer rec.Release()
	return w.write(path, dutyCycleSchema, rec)
}

func (w *ParquetWriter) write(path string, schema *arrow.Schema, rec arrow.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(schema, f, props, pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(w.mem)))
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write parquet record: %w", err)
	}

	// closing the parquet writer also closes f
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"path": path,
		"rows": rec.NumRows(),
	}).Debug("Parquet table written")
	return nil
}
