package model

import (
	"fmt"
	"sync"
)

// Field keys shared across entity schemas.
const (
	KeyCompanyID              = "companyId"
	KeyCompanyName            = "companyName"
	KeyEmail                  = "email"
	KeyPhone                  = "phone"
	KeyAddress                = "address"
	KeyCity                   = "city"
	KeyCommercialRegistration = "commercialRegistration"
	KeyVATNumber              = "vatNumber"
	KeyNotes                  = "notes"
	KeyContractStartDate      = "contractStartDate"
	KeyContractEndDate        = "contractEndDate"
	KeyContractPeriodMonths   = "contractPeriodMonths"
	KeyContractType           = "contractType"
	KeyRegularVisits          = "regularVisitsPerYear"
	KeyEmergencyVisits        = "emergencyVisitsPerYear"
	KeyContractValue          = "contractValue"
	KeyExtinguisherService    = "fireExtinguisherService"
	KeyAlarmService           = "alarmSystemService"
	KeySuppressionService     = "fireSuppressionService"
	KeyBranchNames            = "branchNames"
	KeyBranchName             = "branchName"
	KeyLocation               = "location"
	KeyContactPerson          = "contactPerson"
	KeyContactPhone           = "contactPhone"
)

// CompanyIDWidth is the default zero-pad width of company identifiers.
const CompanyIDWidth = 4

const (
	phonePattern = `^\+?[0-9][0-9 \-]{6,18}$`
	phoneHint    = "use digits only, e.g. 0501234567"
)

// Schema is the closed field table of one entity type.
type Schema struct {
	Entity EntityType
	Fields *FieldRegistry
	// OneOf lists groups of fields where at least one member must be non-empty.
	OneOf [][]string
}

var (
	schemasOnce sync.Once
	schemas     map[EntityType]*Schema
)

// SchemaFor returns the field table for e, or nil for an unknown entity type.
func SchemaFor(e EntityType) *Schema {
	schemasOnce.Do(func() {
		schemas = map[EntityType]*Schema{
			EntityCompanies: {
				Entity: EntityCompanies,
				Fields: NewFieldRegistry(companyFields()),
			},
			EntityContracts: {
				Entity: EntityContracts,
				Fields: NewFieldRegistry(contractFields(false)),
			},
			EntityContractsAdvanced: {
				Entity: EntityContractsAdvanced,
				Fields: NewFieldRegistry(contractFields(true)),
				OneOf:  [][]string{{KeyContractEndDate, KeyContractPeriodMonths}},
			},
			EntityBranches: {
				Entity: EntityBranches,
				Fields: NewFieldRegistry(branchFields()),
				OneOf:  [][]string{{KeyCompanyID, KeyCompanyName}},
			},
		}
	})
	return schemas[e]
}

func bound(v float64) *float64 { return &v }

func companyIDField(required bool) FieldConfig {
	return FieldConfig{
		Key: KeyCompanyID, Label: "Company ID", LabelAR: "رقم الشركة",
		Type: FieldIdentifier, Required: required, Width: CompanyIDWidth,
		Pattern:     fmt.Sprintf(`^\d{%d}$`, CompanyIDWidth),
		PatternHint: fmt.Sprintf("company ID must be %d digits, e.g. %0*d", CompanyIDWidth, CompanyIDWidth, 1),
		Headers:     []string{"معرف الشركة", "كود الشركة", "Company Code"},
	}
}

func companyFields() []FieldConfig {
	return []FieldConfig{
		companyIDField(false),
		{
			Key: KeyCompanyName, Label: "Company Name", LabelAR: "اسم الشركة",
			Type: FieldString, Required: true,
			Headers: []string{"الشركة", "Name", "Company"},
		},
		{
			Key: KeyEmail, Label: "Email", LabelAR: "البريد الإلكتروني",
			Type: FieldString, Pattern: `^[^@\s]+@[^@\s]+\.[^@\s]+$`,
			PatternHint: "use a valid address, e.g. name@example.com",
			Headers:     []string{"الايميل", "E-mail", "Email Address"},
		},
		{
			Key: KeyPhone, Label: "Phone", LabelAR: "رقم الهاتف",
			Type: FieldString, Required: true, Pattern: phonePattern, PatternHint: phoneHint,
			Headers: []string{"الهاتف", "الجوال", "Phone Number", "Mobile"},
		},
		{
			Key: KeyAddress, Label: "Address", LabelAR: "العنوان",
			Type: FieldString, Required: true,
		},
		{
			Key: KeyCity, Label: "City", LabelAR: "المدينة",
			Type: FieldString, Required: true, City: true,
		},
		{
			Key: KeyCommercialRegistration, Label: "Commercial Registration", LabelAR: "السجل التجاري",
			Type: FieldString, Pattern: `^\d{10}$`, PatternHint: "commercial registration is 10 digits",
			Headers: []string{"CR Number"},
		},
		{
			Key: KeyVATNumber, Label: "VAT Number", LabelAR: "الرقم الضريبي",
			Type: FieldString, Pattern: `^3\d{14}$`, PatternHint: "VAT number is 15 digits starting with 3",
			Headers: []string{"Tax Number"},
		},
		{Key: KeyNotes, Label: "Notes", LabelAR: "ملاحظات", Type: FieldString},
	}
}

func contractFields(advanced bool) []FieldConfig {
	fields := []FieldConfig{
		companyIDField(true),
		{
			Key: KeyContractStartDate, Label: "Contract Start Date", LabelAR: "تاريخ بداية العقد",
			Type: FieldDate, Required: true,
			Headers: []string{"تاريخ البداية", "Start Date"},
		},
		{
			Key: KeyContractEndDate, Label: "Contract End Date", LabelAR: "تاريخ نهاية العقد",
			Type: FieldDate, Required: !advanced,
			Headers: []string{"تاريخ النهاية", "تاريخ الانتهاء", "End Date"},
		},
	}
	if advanced {
		fields = append(fields, FieldConfig{
			Key: KeyContractPeriodMonths, Label: "Contract Period (Months)", LabelAR: "مدة العقد بالأشهر",
			Type: FieldNumber, Min: bound(1), Max: bound(120),
			Headers: []string{"مدة العقد", "Period Months", "Contract Period"},
		})
	}
	fields = append(fields,
		FieldConfig{
			Key: KeyContractType, Label: "Contract Type", LabelAR: "نوع العقد",
			Type: FieldEnum,
			Enum: []string{"maintenance", "installation", "inspection", "صيانة", "تركيب", "فحص"},
		},
		FieldConfig{
			Key: KeyRegularVisits, Label: "Regular Visits Per Year", LabelAR: "عدد الزيارات الدورية",
			Type: FieldNumber, Required: true, Min: bound(0), Max: bound(365),
			Headers: []string{"الزيارات الدورية", "Regular Visits"},
		},
		FieldConfig{
			Key: KeyEmergencyVisits, Label: "Emergency Visits Per Year", LabelAR: "عدد الزيارات الطارئة",
			Type: FieldNumber, Min: bound(0), Max: bound(365),
			Headers: []string{"الزيارات الطارئة", "Emergency Visits"},
		},
		FieldConfig{
			Key: KeyContractValue, Label: "Contract Value", LabelAR: "قيمة العقد",
			Type: FieldNumber, Min: bound(0),
			Headers: []string{"Value", "Amount"},
		},
		FieldConfig{
			Key: KeyExtinguisherService, Label: "Fire Extinguisher Service", LabelAR: "خدمة طفايات الحريق",
			Type: FieldBoolean, Headers: []string{"طفايات الحريق"},
		},
		FieldConfig{
			Key: KeyAlarmService, Label: "Alarm System Service", LabelAR: "خدمة نظام الإنذار",
			Type: FieldBoolean, Headers: []string{"نظام الإنذار"},
		},
		FieldConfig{
			Key: KeySuppressionService, Label: "Fire Suppression Service", LabelAR: "خدمة نظام الإطفاء",
			Type: FieldBoolean, Headers: []string{"نظام الإطفاء"},
		},
	)
	if advanced {
		fields = append(fields, FieldConfig{
			Key: KeyBranchNames, Label: "Branch Names", LabelAR: "أسماء الفروع",
			Type: FieldString, Headers: []string{"الفروع", "Branches"},
		})
	}
	fields = append(fields, FieldConfig{Key: KeyNotes, Label: "Notes", LabelAR: "ملاحظات", Type: FieldString})
	return fields
}

func branchFields() []FieldConfig {
	return []FieldConfig{
		companyIDField(false),
		{
			Key: KeyCompanyName, Label: "Company Name", LabelAR: "اسم الشركة",
			Type: FieldString, Headers: []string{"الشركة", "Company"},
		},
		{
			Key: KeyBranchName, Label: "Branch Name", LabelAR: "اسم الفرع",
			Type: FieldString, Required: true, Headers: []string{"الفرع", "Branch"},
		},
		{
			Key: KeyCity, Label: "City", LabelAR: "المدينة",
			Type: FieldString, Required: true, City: true,
		},
		{
			Key: KeyLocation, Label: "Location", LabelAR: "الموقع",
			Type: FieldString, Required: true, Headers: []string{"موقع الفرع", "Branch Location"},
		},
		{
			Key: KeyContactPerson, Label: "Contact Person", LabelAR: "الشخص المسؤول",
			Type: FieldString, Headers: []string{"المسؤول", "Contact Name"},
		},
		{
			Key: KeyContactPhone, Label: "Contact Phone", LabelAR: "هاتف المسؤول",
			Type: FieldString, Pattern: phonePattern, PatternHint: phoneHint,
			Headers: []string{"رقم التواصل", "Contact Number"},
		},
		{Key: KeyNotes, Label: "Notes", LabelAR: "ملاحظات", Type: FieldString},
	}
}
