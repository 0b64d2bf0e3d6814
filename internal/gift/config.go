package gift

import (
	"fmt"

	"github.com/dinhdungweb/Helios-account/pkg/config"
)

// Mode controls whether the gift is added automatically.
type Mode string

// Gift modes.
const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// Trigger names the rule a cart must satisfy to qualify for the gift.
type Trigger string

// Gift triggers.
const (
	TriggerAny        Trigger = "any"
	TriggerCollection Trigger = "collection"
	TriggerMinimum    Trigger = "minimum"
	TriggerProduct    Trigger = "product"
)

// Config is the free-gift promotion, read from GIFT_* variables.
type Config struct {
	Enabled           bool    `env:"ENABLED" envDefault:"false"`
	Mode              Mode    `env:"MODE" envDefault:"auto"`
	Trigger           Trigger `env:"TRIGGER" envDefault:"any"`
	TriggerCollection string  `env:"TRIGGER_COLLECTION"`
	TriggerProductID  int64   `env:"TRIGGER_PRODUCT_ID"`
	MinimumAmount     int64   `env:"MINIMUM_AMOUNT"`
	ProductID         int64   `env:"PRODUCT_ID"`
	VariantID         int64   `env:"VARIANT_ID"`
	Quantity          int     `env:"QUANTITY" envDefault:"1"`
	Label             string  `env:"LABEL" envDefault:"Free gift"`
	Message           string  `env:"MESSAGE"`
}

// LoadConfig reads the gift configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.LoadWithPrefix(&cfg, "GIFT_"); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks an enabled promotion is complete.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.VariantID <= 0 {
		return fmt.Errorf("GIFT_VARIANT_ID is required when the gift is enabled")
	}
	if c.Quantity <= 0 {
		return fmt.Errorf("GIFT_QUANTITY must be positive, got %d", c.Quantity)
	}
	switch c.Mode {
	case ModeAuto, ModeManual:
	default:
		return fmt.Errorf("GIFT_MODE must be auto or manual, got %q", c.Mode)
	}
	switch c.Trigger {
	case TriggerAny:
	case TriggerCollection:
		if c.TriggerCollection == "" {
			return fmt.Errorf("GIFT_TRIGGER_COLLECTION is required for the collection trigger")
		}
	case TriggerMinimum:
		if c.MinimumAmount <= 0 {
			return fmt.Errorf("GIFT_MINIMUM_AMOUNT must be positive for the minimum trigger")
		}
	case TriggerProduct:
		if c.TriggerProductID <= 0 {
			return fmt.Errorf("GIFT_TRIGGER_PRODUCT_ID is required for the product trigger")
		}
	default:
		return fmt.Errorf("GIFT_TRIGGER must be any, collection, minimum or product, got %q", c.Trigger)
	}
	return nil
}
