package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/pbaille/seen/internal/domain"
	"github.com/pbaille/seen/internal/seen"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator; field errors are reported with
// their JSON names
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateStruct runs the validator and converts the first failure into a
// domain.ValidationError
func validateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("request", err.Error())
	}
	fe := verrs[0]
	return domain.NewValidationError(fe.Field(), translateError(fe))
}

// errorMessageTemplates maps validation tags to message templates
var errorMessageTemplates = map[string]string{
	"required": "%s is required",
}

// errorMessageWithParam maps validation tags to templates that include param
var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"min":   "%s must contain at least %s item(s)",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	if tpl, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tpl, field)
	}
	if tpl, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tpl, field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

// searchQuery is the query string of GET /seen/
type searchQuery struct {
	Value       string `json:"value"`
	Page        int    `json:"page" validate:"gte=1"`
	Max         int    `json:"max" validate:"gte=1"`
	IsSeenLocal *bool  `json:"is_seen_local"`
	SortBy      string `json:"sort_by" validate:"oneof=title task added local id"`
	Order       string `json:"order" validate:"oneof=asc desc"`
}

// deleteQuery is the query string of DELETE /seen/
type deleteQuery struct {
	Value       string `json:"value"`
	IsSeenLocal *bool  `json:"is_seen_local"`
}

func (q deleteQuery) filter() domain.Filter {
	return domain.Filter{Value: q.Value, Local: q.IsSeenLocal}
}

func (q searchQuery) filter() domain.Filter {
	return domain.Filter{Value: q.Value, Local: q.IsSeenLocal}
}

func (q searchQuery) pageRequest() seen.PageRequest {
	return seen.PageRequest{
		Page:     q.Page,
		PageSize: q.Max,
		SortBy:   domain.SortKey(q.SortBy),
		Order:    domain.Order(q.Order),
	}
}

// parseSearchQuery reads and validates the search parameters. Query values
// arrive percent-decoded by net/url.
func parseSearchQuery(r *http.Request, defaultPageSize, maxPageSize int) (searchQuery, error) {
	values := r.URL.Query()
	q := searchQuery{
		Value:  values.Get("value"),
		Page:   1,
		Max:    defaultPageSize,
		SortBy: string(domain.SortByAdded),
		Order:  string(domain.OrderDesc),
	}

	var err error
	if q.Page, err = intParam(values.Get("page"), "page", q.Page); err != nil {
		return q, err
	}
	if q.Max, err = intParam(values.Get("max"), "max", q.Max); err != nil {
		return q, err
	}
	if q.IsSeenLocal, err = boolParam(values.Get("is_seen_local"), "is_seen_local"); err != nil {
		return q, err
	}
	if s := values.Get("sort_by"); s != "" {
		q.SortBy = s
	}
	if s := values.Get("order"); s != "" {
		q.Order = s
	}

	if err := validateStruct(q); err != nil {
		return q, err
	}
	if maxPageSize > 0 && q.Max > maxPageSize {
		return q, domain.NewValidationError("max", fmt.Sprintf("max must be less than or equal to %d", maxPageSize))
	}
	return q, nil
}

func parseDeleteQuery(r *http.Request) (deleteQuery, error) {
	values := r.URL.Query()
	local, err := boolParam(values.Get("is_seen_local"), "is_seen_local")
	if err != nil {
		return deleteQuery{}, err
	}
	return deleteQuery{Value: values.Get("value"), IsSeenLocal: local}, nil
}

func intParam(raw, name string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

// boolParam parses a tri-state boolean: an absent parameter is nil
func boolParam(raw, name string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return nil, domain.NewValidationError(name, fmt.Sprintf("%s must be a boolean", name))
	}
	return &b, nil
}

// createRequest is the body of POST /seen/
type createRequest struct {
	Title  string            `json:"title" validate:"required"`
	Task   string            `json:"task"`
	Fields map[string]string `json:"fields" validate:"required,min=1,dive,keys,required,endkeys,required"`
	Reason string            `json:"reason"`
	Local  bool              `json:"local"`
}

func (c createRequest) newEntry() domain.NewEntry {
	return domain.NewEntry{
		Title:  c.Title,
		Task:   c.Task,
		Reason: c.Reason,
		Local:  c.Local,
		Fields: domain.FieldValues(c.Fields),
	}
}
