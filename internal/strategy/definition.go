package strategy

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/screener/internal/contracts"
)

// Condition type names on the wire
const (
	TypeLimitUp     = "limit_up"
	TypePctChangeGT = "pct_change_gt"
	TypePctChangeLT = "pct_change_lt"
	TypeVolumeRatio = "volume_ratio"
)

// DefaultLookbackDays is used when a definition omits timeRange
const DefaultLookbackDays = 30

// MaxOffset bounds |date1| and |date2| (about one trading year)
const MaxOffset = 250

var (
	// ErrInvalidCondition marks a definition that cannot be compiled
	ErrInvalidCondition = errors.New("invalid condition")
)

// Strategy is a compiled, immutable condition set
// ⭐ SSOT: 엔진은 Strategy만 받음 (문자열 타입 분기 없음)
type Strategy struct {
	Name         string
	Conditions   []Condition
	Exclude      contracts.ExcludeRules
	LookbackDays int
}

// HasLimitUp reports whether the pre-filter applies
func (s *Strategy) HasLimitUp() bool {
	return HasLimitUp(s.Conditions)
}

// Definition is the JSON / YAML form of a strategy
type Definition struct {
	Name       string                 `json:"name,omitempty" yaml:"name"`
	Conditions []ConditionSpec        `json:"conditions" yaml:"conditions" validate:"dive"`
	Exclude    contracts.ExcludeRules `json:"exclude" yaml:"exclude"`
	TimeRange  int                    `json:"timeRange,omitempty" yaml:"time_range" validate:"omitempty,min=1,max=250"`
}

// ConditionSpec is one condition on the wire
type ConditionSpec struct {
	Type  string   `json:"type" yaml:"type" validate:"required,oneof=limit_up pct_change_gt pct_change_lt volume_ratio"`
	Date1 int      `json:"date1" yaml:"date1" validate:"offset"`
	Date2 int      `json:"date2,omitempty" yaml:"date2" validate:"offset"`
	Value float64  `json:"value,omitempty" yaml:"value"`
	Ratio *float64 `json:"ratio,omitempty" yaml:"ratio" validate:"omitempty,gte=0"` // default 1
}

// ValidationError is a definition field that failed validation
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidCondition
func (e ValidationError) Unwrap() error {
	return ErrInvalidCondition
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// 에러 메시지에 JSON 필드명 사용
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("offset", validateOffset)

	return v
}

func validateOffset(fl validator.FieldLevel) bool {
	off := fl.Field().Int()
	return off >= -MaxOffset && off <= MaxOffset
}

// Validate checks field constraints of a definition
func Validate(def *Definition) error {
	if err := validate.Struct(def); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return ValidationError{
				Field:   strings.TrimPrefix(fe.Namespace(), "Definition."),
				Message: describe(fe),
			}
		}
		return fmt.Errorf("validate definition: %w", err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "offset":
		return fmt.Sprintf("offset must be within ±%d trading days", MaxOffset)
	case "min", "gte":
		return "must be >= " + fe.Param()
	case "max":
		return "must be <= " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

// Compile validates a definition and turns it into a Strategy
func (d *Definition) Compile() (*Strategy, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}

	conditions := make([]Condition, 0, len(d.Conditions))
	for i, spec := range d.Conditions {
		c, err := spec.compile()
		if err != nil {
			return nil, ValidationError{Field: fmt.Sprintf("conditions[%d]", i), Message: err.Error()}
		}
		conditions = append(conditions, c)
	}

	lookback := d.TimeRange
	if lookback == 0 {
		lookback = DefaultLookbackDays
	}

	return &Strategy{
		Name:         d.Name,
		Conditions:   conditions,
		Exclude:      d.Exclude,
		LookbackDays: lookback,
	}, nil
}

func (s ConditionSpec) compile() (Condition, error) {
	switch s.Type {
	case TypeLimitUp:
		return LimitUp{Offset: s.Date1}, nil
	case TypePctChangeGT:
		return PctChangeGreaterThan{Offset: s.Date1, Threshold: s.Value}, nil
	case TypePctChangeLT:
		return PctChangeLessThan{Offset: s.Date1, Threshold: s.Value}, nil
	case TypeVolumeRatio:
		ratio := 1.0
		if s.Ratio != nil {
			ratio = *s.Ratio
		}
		return VolumeRatio{OffsetA: s.Date1, OffsetB: s.Date2, MinRatio: ratio}, nil
	default:
		return nil, fmt.Errorf("unknown condition type %q", s.Type)
	}
}

// DefinitionOf converts a Strategy back to its wire form
func DefinitionOf(s *Strategy) Definition {
	def := Definition{
		Name:      s.Name,
		Exclude:   s.Exclude,
		TimeRange: s.LookbackDays,
	}
	for _, c := range s.Conditions {
		switch c := c.(type) {
		case LimitUp:
			def.Conditions = append(def.Conditions, ConditionSpec{Type: TypeLimitUp, Date1: c.Offset})
		case PctChangeGreaterThan:
			def.Conditions = append(def.Conditions, ConditionSpec{Type: TypePctChangeGT, Date1: c.Offset, Value: c.Threshold})
		case PctChangeLessThan:
			def.Conditions = append(def.Conditions, ConditionSpec{Type: TypePctChangeLT, Date1: c.Offset, Value: c.Threshold})
		case VolumeRatio:
			ratio := c.MinRatio
			def.Conditions = append(def.Conditions, ConditionSpec{Type: TypeVolumeRatio, Date1: c.OffsetA, Date2: c.OffsetB, Ratio: &ratio})
		}
	}
	return def
}

// Default is the daily screen: limit-up at T-3, up at T-2, pullback at T-1 on
// lighter volume, then an up day at T on volume above T-1.
func Default() *Strategy {
	return &Strategy{
		Name: "daily_limit_up_pullback",
		Conditions: []Condition{
			LimitUp{Offset: -3},
			PctChangeGreaterThan{Offset: -2, Threshold: 0},
			PctChangeLessThan{Offset: -1, Threshold: 0},
			VolumeRatio{OffsetA: -2, OffsetB: -1, MinRatio: 1},
			VolumeRatio{OffsetA: 0, OffsetB: -1, MinRatio: 1},
			PctChangeGreaterThan{Offset: 0, Threshold: 0},
		},
		Exclude:      contracts.ExcludeAll(),
		LookbackDays: DefaultLookbackDays,
	}
}
