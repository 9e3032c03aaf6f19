// internal/container/container.go
package container

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sebinsphilip/LowPowerWN-IOT/internal/addrmap"
	"github.com/sebinsphilip/LowPowerWN-IOT/internal/config"
	"github.com/sebinsphilip/LowPowerWN-IOT/internal/database"
	"github.com/sebinsphilip/LowPowerWN-IOT/internal/database/repositories"
	"github.com/sebinsphilip/LowPowerWN-IOT/internal/export"
	"github.com/sebinsphilip/LowPowerWN-IOT/internal/logparse"
	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

// Container holds the components of one analysis run
type Container struct {
	Config *config.Config
	Logger logrus.FieldLogger
	Mode   types.Mode

	// Parsing
	Resolver  *addrmap.Resolver
	Matcher   logparse.Matcher
	Collector *logparse.Collector

	// Optional outputs, nil when disabled
	Exporter *export.ParquetWriter
	Archive  *database.DatabaseFactory
	Runs     database.RunRepositoryInterface
}

// New creates the components described by cfg. The archive is opened and
// migrated only when cfg enables it.
func New(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	if err := c.initParsing(); err != nil {
		return nil, fmt.Errorf("failed to init parsing: %w", err)
	}

	if cfg.Output.Parquet {
		c.Exporter = export.NewParquetWriter(logger)
	}

	if cfg.Archive.Enabled() {
		if err := c.initArchive(ctx); err != nil {
			return nil, fmt.Errorf("failed to init archive: %w", err)
		}
	}

	c.Logger.WithFields(logrus.Fields{
		"mode":    c.Mode,
		"parquet": c.Exporter != nil,
		"archive": c.Archive != nil,
	}).Debug("Container initialization complete")
	return c, nil
}

func (c *Container) initParsing() error {
	mode, err := c.Config.ParsedMode()
	if err != nil {
		return err
	}
	loc, err := c.Config.Location()
	if err != nil {
		return err
	}

	c.Mode = mode
	c.Resolver = addrmap.New(c.Config.Addresses)

	c.Matcher, err = logparse.NewMatcher(mode, c.Resolver, loc)
	if err != nil {
		return err
	}
	c.Collector = logparse.NewCollector(c.Matcher, c.Logger)
	return nil
}

func (c *Container) initArchive(ctx context.Context) error {
	factory, err := database.NewDatabaseFactory(c.Config.Archive.Driver, c.Config.Archive.DSN, c.Logger)
	if err != nil {
		return err
	}

	if err := factory.Initialize(ctx); err != nil {
		factory.Close()
		return err
	}

	c.Archive = factory
	c.Runs = repositories.NewRunRepository(factory.GetManager(), factory.GetTransactionManager(), c.Logger)
	return nil
}

// Close releases the archive connection, if any
func (c *Container) Close() error {
	if c.Archive == nil {
		return nil
	}
	metrics := c.Archive.GetMetrics()
	c.Logger.WithFields(logrus.Fields{
		"driver":  metrics.Driver,
		"queries": metrics.TotalQueries,
	}).Debug("Closing archive")
	return c.Archive.Close()
}
