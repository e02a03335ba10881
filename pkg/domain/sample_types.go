package domain

import "strings"

// SampleTypeCode names the sample types every installation ships with.
type SampleTypeCode string

// Built-in sample types.
const (
	SampleTypeCellPlate     SampleTypeCode = "CELL_PLATE"
	SampleTypeControlLayout SampleTypeCode = "CONTROL_LAYOUT"
	SampleTypeDilutionPlate SampleTypeCode = "DILUTION_PLATE"
	SampleTypeMasterPlate   SampleTypeCode = "MASTER_PLATE"
	SampleTypeReinfectPlate SampleTypeCode = "REINFECT_PLATE"
	SampleTypeWell          SampleTypeCode = "WELL"
)

type sampleTypeInfo struct {
	parentRequired bool
	description    string
}

var builtinSampleTypes = []SampleTypeCode{
	SampleTypeCellPlate,
	SampleTypeControlLayout,
	SampleTypeDilutionPlate,
	SampleTypeMasterPlate,
	SampleTypeReinfectPlate,
	SampleTypeWell,
}

var sampleTypeInfos = map[SampleTypeCode]sampleTypeInfo{
	SampleTypeCellPlate:     {parentRequired: true, description: "cell plate"},
	SampleTypeControlLayout: {description: "control layout"},
	SampleTypeDilutionPlate: {parentRequired: true, description: "dilution plate"},
	SampleTypeMasterPlate:   {description: "master plate"},
	SampleTypeReinfectPlate: {parentRequired: true, description: "reinfection plate"},
	SampleTypeWell:          {description: "well"},
}

// BuiltinSampleTypes returns the built-in sample type codes.
func BuiltinSampleTypes() []SampleTypeCode {
	out := make([]SampleTypeCode, len(builtinSampleTypes))
	copy(out, builtinSampleTypes)
	return out
}

// ParseSampleTypeCode looks up a built-in sample type ignoring case.
func ParseSampleTypeCode(code string) (SampleTypeCode, error) {
	for _, c := range builtinSampleTypes {
		if strings.EqualFold(string(c), code) {
			return c, nil
		}
	}
	return "", UserFailuref("No sample type for given code '%s'.", code)
}

// ParentRequired reports whether samples of this type must be derived from a parent.
func (c SampleTypeCode) ParentRequired() bool { return sampleTypeInfos[c].parentRequired }

// Description returns the human readable name of the type.
func (c SampleTypeCode) Description() string { return sampleTypeInfos[c].description }

// IsPlateType reports whether a sample type code denotes a plate.
func IsPlateType(code string) bool {
	return strings.HasSuffix(code, "_PLATE")
}
