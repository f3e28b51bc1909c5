package conversation

import (
	"fmt"

	"github.com/weiawesome/wes-match-live/pkg/database"
)

// Drivers accepted by New.
const (
	DriverMemory    = "memory"
	DriverSQL       = "sql"
	DriverCassandra = "cassandra"
)

// Config selects and configures a Store driver.
type Config struct {
	Driver    string          `mapstructure:"driver"`
	Database  database.Config `mapstructure:"database"`
	Cassandra CassandraConfig `mapstructure:"cassandra"`
}

// New opens the store selected by cfg.Driver.
func New(cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil

	case DriverSQL:
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, err
		}
		store, err := NewGormStore(db)
		if err != nil {
			database.Close(db)
			return nil, err
		}
		return store, nil

	case DriverCassandra:
		return NewCassandraStore(cfg.Cassandra)

	default:
		return nil, fmt.Errorf("unsupported conversation driver: %s", cfg.Driver)
	}
}
