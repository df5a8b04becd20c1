// Package units provides physical quantities and an explicit unit registry
// for converting instrument readings between units of the same dimension.
package units

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownUnit is returned for a symbol that is not registered
	ErrUnknownUnit = errors.New("unknown unit")

	// ErrIncompatible is returned when converting across dimensions
	ErrIncompatible = errors.New("incompatible units")

	// ErrInvalidQuantity is returned when a quantity string cannot be parsed
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// Dimension groups units that convert into each other
type Dimension string

const (
	Dimensionless Dimension = "dimensionless"
	Power         Dimension = "power"
	Voltage       Dimension = "voltage"
	Current       Dimension = "current"
	Length        Dimension = "length"
	Time          Dimension = "time"
	Frequency     Dimension = "frequency"
)

// Quantity is a magnitude with a unit symbol
type Quantity struct {
	Magnitude decimal.Decimal `json:"magnitude"`
	Unit      string          `json:"unit"`
}

// New builds a quantity from a float magnitude
func New(magnitude float64, unit string) Quantity {
	return Quantity{Magnitude: decimal.NewFromFloat(magnitude), Unit: unit}
}

// Float returns the magnitude as float64
func (q Quantity) Float() float64 {
	f, _ := q.Magnitude.Float64()
	return f
}

// String renders the quantity as e.g. "115 mW"
func (q Quantity) String() string {
	if q.Unit == "" {
		return q.Magnitude.String()
	}
	return q.Magnitude.String() + " " + q.Unit
}

var quantityPattern = regexp.MustCompile(`^\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*(\S*)\s*$`)

// ParseQuantity parses "115 mW", "0.115W" or a bare number
func ParseQuantity(s string) (Quantity, error) {
	m := quantityPattern.FindStringSubmatch(s)
	if m == nil {
		return Quantity{}, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}

	number := strings.TrimPrefix(m[1], "+")
	if i := strings.IndexByte(number, '.'); i == 0 || (i == 1 && number[0] == '-') {
		number = number[:i] + "0" + number[i:]
	}

	magnitude, err := decimal.NewFromString(number)
	if err != nil {
		return Quantity{}, fmt.Errorf("%w: %q: %v", ErrInvalidQuantity, s, err)
	}

	return Quantity{Magnitude: magnitude, Unit: m[2]}, nil
}

// Unit is a registered unit: one of Scale base units of its Dimension
type Unit struct {
	Symbol    string          `json:"symbol"`
	Dimension Dimension       `json:"dimension"`
	Scale     decimal.Decimal `json:"scale"`
}

// prefix is an SI prefix with its power of ten
type prefix struct {
	symbol   string
	exponent int32
}

var siPrefixes = []prefix{
	{"p", -12}, {"n", -9}, {"u", -6}, {"µ", -6}, {"m", -3},
	{"k", 3}, {"M", 6}, {"G", 9},
}

// Converter is a registry of units. It is constructed once and passed to
// whatever needs conversions.
type Converter struct {
	units map[string]Unit
}

// NewConverter creates a converter with SI units for power, voltage,
// current, length, time and frequency
func NewConverter() *Converter {
	c := &Converter{units: make(map[string]Unit)}

	c.registerPrefixed("W", Power)
	c.registerPrefixed("V", Voltage)
	c.registerPrefixed("A", Current)
	c.registerPrefixed("m", Length)
	c.registerPrefixed("s", Time)
	c.registerPrefixed("Hz", Frequency)

	c.mustRegister("cm", Length, decimal.New(1, -2))
	c.mustRegister("min", Time, decimal.NewFromInt(60))
	c.mustRegister("h", Time, decimal.NewFromInt(3600))
	c.mustRegister("", Dimensionless, decimal.NewFromInt(1))

	return c
}

// registerPrefixed registers base and its SI-prefixed variants
func (c *Converter) registerPrefixed(base string, dim Dimension) {
	c.mustRegister(base, dim, decimal.NewFromInt(1))
	for _, p := range siPrefixes {
		c.mustRegister(p.symbol+base, dim, decimal.New(1, p.exponent))
	}
}

func (c *Converter) mustRegister(symbol string, dim Dimension, scale decimal.Decimal) {
	if err := c.Register(symbol, dim, scale); err != nil {
		panic(err)
	}
}

// Register adds a unit. Registering the same symbol twice is an error.
func (c *Converter) Register(symbol string, dim Dimension, scale decimal.Decimal) error {
	if _, exists := c.units[symbol]; exists {
		return fmt.Errorf("unit %q already registered", symbol)
	}
	if !scale.IsPositive() {
		return fmt.Errorf("unit %q: scale must be positive", symbol)
	}
	c.units[symbol] = Unit{Symbol: symbol, Dimension: dim, Scale: scale}
	return nil
}

// Lookup returns the registered unit for symbol
func (c *Converter) Lookup(symbol string) (Unit, error) {
	u, ok := c.units[strings.TrimSpace(symbol)]
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, symbol)
	}
	return u, nil
}

// Convert expresses q in the target unit
func (c *Converter) Convert(q Quantity, target string) (Quantity, error) {
	from, err := c.Lookup(q.Unit)
	if err != nil {
		return Quantity{}, err
	}
	to, err := c.Lookup(target)
	if err != nil {
		return Quantity{}, err
	}
	if from.Dimension != to.Dimension {
		return Quantity{}, fmt.Errorf("%w: %s (%s) to %s (%s)", ErrIncompatible, from.Symbol, from.Dimension, to.Symbol, to.Dimension)
	}

	magnitude := q.Magnitude.Mul(from.Scale).Div(to.Scale)
	return Quantity{Magnitude: magnitude, Unit: to.Symbol}, nil
}

// Require checks that q has the given dimension and converts it to target
func (c *Converter) Require(q Quantity, dim Dimension, target string) (Quantity, error) {
	u, err := c.Lookup(q.Unit)
	if err != nil {
		return Quantity{}, err
	}
	if u.Dimension != dim {
		return Quantity{}, fmt.Errorf("%w: %s is %s, expected %s", ErrIncompatible, q, u.Dimension, dim)
	}
	return c.Convert(q, target)
}

// Parse parses s and converts it to target
func (c *Converter) Parse(s string, target string) (Quantity, error) {
	q, err := ParseQuantity(s)
	if err != nil {
		return Quantity{}, err
	}
	return c.Convert(q, target)
}
