package bo

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"openbis/pkg/domain"
)

// PropertyValue is a raw property value as entered by a user.
type PropertyValue struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// PropertiesConverter turns raw property values of one entity kind into
// validated EntityProperty values.
type PropertiesConverter struct {
	view domain.TransactionView
	kind domain.EntityKind
}

// NewPropertiesConverter constructs a converter for kind.
func NewPropertiesConverter(view domain.TransactionView, kind domain.EntityKind) *PropertiesConverter {
	return &PropertiesConverter{view: view, kind: kind}
}

type assignedProperty struct {
	assignment   domain.Assignment
	propertyType domain.PropertyType
}

func (c *PropertiesConverter) assigned(entityType domain.EntityType) (map[string]assignedProperty, []string) {
	out := make(map[string]assignedProperty)
	var codes []string
	for _, a := range c.view.ListAssignments(c.kind, entityType.ID) {
		pt, ok := c.view.FindPropertyType(a.PropertyTypeID)
		if !ok {
			continue
		}
		out[pt.Code] = assignedProperty{assignment: a, propertyType: pt}
		codes = append(codes, pt.Code)
	}
	return out, codes
}

// Convert validates values against the property types assigned to the
// entity type. Empty values are dropped.
func (c *PropertiesConverter) Convert(values []PropertyValue, entityTypeCode, registratorID string) ([]domain.EntityProperty, error) {
	entityType, ok := c.view.FindEntityTypeByCode(c.kind, domain.NormalizeCode(entityTypeCode))
	if !ok {
		return nil, domain.UserFailuref("%s type '%s' does not exist.", capitalize(c.kind.Label()), entityTypeCode)
	}
	assigned, codes := c.assigned(entityType)
	props := make([]domain.EntityProperty, 0, len(values))
	for _, v := range values {
		code := domain.NormalizeCode(v.Code)
		if strings.TrimSpace(v.Value) == "" {
			continue
		}
		ap, ok := assigned[code]
		if !ok {
			return nil, domain.UserFailuref("Property type '%s' is not assigned to %s type '%s'.%s",
				code, c.kind.Label(), entityType.Code, didYouMean(code, codes))
		}
		prop, err := c.CreateProperty(ap.propertyType, ap.assignment, registratorID, v.Value)
		if err != nil {
			return nil, err
		}
		if prop != nil {
			props = domain.SetProperty(props, *prop)
		}
	}
	return props, nil
}

// CheckMandatory fails when a mandatory property of the entity type has no value.
func (c *PropertiesConverter) CheckMandatory(props []domain.EntityProperty, entityType domain.EntityType) error {
	assigned, codes := c.assigned(entityType)
	for _, code := range codes {
		ap := assigned[code]
		if !ap.assignment.Mandatory {
			continue
		}
		if v, ok := domain.PropertyValue(props, code); !ok || v == "" {
			return domain.UserFailuref("Value of mandatory property '%s' not specified.", code)
		}
	}
	return nil
}

// CreateProperty validates value and builds a single property. It returns
// nil for an empty value.
func (c *PropertiesConverter) CreateProperty(pt domain.PropertyType, a domain.Assignment, registratorID, value string) (*domain.EntityProperty, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	normalized, err := c.ValidateValue(pt, value)
	if err != nil {
		return nil, err
	}
	return &domain.EntityProperty{
		AssignmentID:     a.ID,
		PropertyTypeCode: pt.Code,
		Value:            normalized,
		RegistratorID:    registratorID,
	}, nil
}

// ValidateValue checks value against the data type of pt and returns its normalized form.
func (c *PropertiesConverter) ValidateValue(pt domain.PropertyType, value string) (string, error) {
	v := strings.TrimSpace(value)
	switch pt.DataType {
	case domain.DataInteger:
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return "", domain.UserFailuref("Integer value '%s' has improper format.", value)
		}
	case domain.DataReal:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return "", domain.UserFailuref("Double value '%s' has improper format.", value)
		}
	case domain.DataBoolean:
		switch strings.ToLower(v) {
		case "true", "false":
			return strings.ToLower(v), nil
		}
		return "", domain.UserFailuref("Boolean value '%s' has improper format. It should be either 'true' or 'false'.", value)
	case domain.DataTimestamp:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC().Format(time.RFC3339), nil
			}
		}
		return "", domain.UserFailuref("Date value '%s' has improper format. It must be one of '%s'.", value, strings.Join(timestampLayouts, "', '"))
	case domain.DataControlledVocabulary:
		return c.validateTerm(pt, v)
	case domain.DataMaterial:
		return c.validateMaterial(pt, v)
	case domain.DataHyperlink:
		u, err := url.Parse(v)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ftp") {
			return "", domain.UserFailuref("URL '%s' has improper format.", value)
		}
	}
	return v, nil
}

func (c *PropertiesConverter) validateTerm(pt domain.PropertyType, value string) (string, error) {
	if pt.VocabularyID == nil {
		return "", domain.UserFailuref("Property type '%s' has no vocabulary.", pt.Code)
	}
	vocabulary, ok := c.view.FindVocabulary(*pt.VocabularyID)
	if !ok {
		return "", domain.ErrNotFound{Entity: domain.RecordVocabulary, ID: *pt.VocabularyID}
	}
	code := domain.NormalizeCode(value)
	if _, ok := vocabulary.Term(code); ok {
		return code, nil
	}
	terms := make([]string, 0, len(vocabulary.Terms))
	for _, t := range vocabulary.Terms {
		terms = append(terms, t.Code)
	}
	return "", domain.UserFailuref("Vocabulary value '%s' is not valid. It must exist in '%s' controlled vocabulary.%s",
		code, vocabulary.Code, didYouMean(code, terms))
}

func (c *PropertiesConverter) validateMaterial(pt domain.PropertyType, value string) (string, error) {
	defaultType := ""
	if pt.MaterialTypeID != nil {
		if t, ok := c.view.FindEntityType(*pt.MaterialTypeID); ok {
			defaultType = t.Code
		}
	}
	id, err := domain.ParseMaterialIdentifier(value, defaultType)
	if err != nil {
		return "", err
	}
	if defaultType != "" && id.Type != defaultType {
		return "", domain.UserFailuref("Material '%s' has to be of type '%s'.", id, defaultType)
	}
	materialType, ok := c.view.FindEntityTypeByCode(domain.KindMaterial, id.Type)
	if !ok {
		return "", domain.UserFailuref("Material type '%s' does not exist.", id.Type)
	}
	if _, ok := c.view.FindMaterialByCode(materialType.ID, id.Code); !ok {
		return "", domain.UserFailuref("Material '%s' does not exist.", id)
	}
	return id.String(), nil
}
