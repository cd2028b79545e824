// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Recognized diet values. Records may carry other text; these are the values
// the extraction prompts ask the model to choose from.
const (
	DietCarnivore = "肉食性"
	DietHerbivore = "植食性"
	DietOmnivore  = "杂食性"
)

// Unknown is stored in period and diet when nothing could be determined.
const Unknown = "未知"

// UnknownScientificName fills scientific_name when extraction found none.
const UnknownScientificName = "Unknown"

// DietTypes lists the recognized diet values.
var DietTypes = []string{DietCarnivore, DietHerbivore, DietOmnivore}

// Periods lists the recognized geological periods, oldest first.
var Periods = []string{
	"三叠纪早期", "三叠纪中期", "三叠纪晚期",
	"侏罗纪早期", "侏罗纪中期", "侏罗纪晚期",
	"白垩纪早期", "白垩纪中期", "白垩纪晚期",
}

// FossilTypes lists the recognized fossil categories.
var FossilTypes = []string{
	"完整骨架", "部分骨架", "头骨", "牙齿", "爪子",
	"蛋化石", "足迹化石", "皮肤印痕", "羽毛化石", "其他",
}

// DinosaurInfo holds the descriptive fields of a dinosaur. It is what the
// extraction step produces and what a create request carries. String fields
// are empty when unknown; numeric fields are nil when unknown.
type DinosaurInfo struct {
	Name            string   `json:"name" yaml:"name"`
	ScientificName  string   `json:"scientific_name" yaml:"scientific_name"`
	Period          string   `json:"period" yaml:"period"`
	Diet            string   `json:"diet" yaml:"diet"`
	LengthMinMeters *float64 `json:"length_min_meters" yaml:"length_min_meters"`
	LengthMaxMeters *float64 `json:"length_max_meters" yaml:"length_max_meters"`
	WeightMinTons   *float64 `json:"weight_min_tons" yaml:"weight_min_tons"`
	WeightMaxTons   *float64 `json:"weight_max_tons" yaml:"weight_max_tons"`
	Habitat         string   `json:"habitat" yaml:"habitat"`
	Region          string   `json:"region" yaml:"region"`
	Description     string   `json:"description" yaml:"description"`
}

// WithDefaults fills the fields the record store requires. An empty name
// becomes fallback; scientific name, period and diet get placeholder values.
func (d DinosaurInfo) WithDefaults(fallback string) DinosaurInfo {
	if d.Name == "" {
		d.Name = fallback
	}
	if d.ScientificName == "" {
		d.ScientificName = UnknownScientificName
	}
	if d.Period == "" {
		d.Period = Unknown
	}
	if d.Diet == "" {
		d.Diet = Unknown
	}
	return d
}

// Patch returns an update that overwrites every field of a record with d.
// Nil numeric fields are left untouched.
func (d DinosaurInfo) Patch() DinosaurPatch {
	return DinosaurPatch{
		Name:            &d.Name,
		ScientificName:  &d.ScientificName,
		Period:          &d.Period,
		Diet:            &d.Diet,
		LengthMinMeters: d.LengthMinMeters,
		LengthMaxMeters: d.LengthMaxMeters,
		WeightMinTons:   d.WeightMinTons,
		WeightMaxTons:   d.WeightMaxTons,
		Habitat:         &d.Habitat,
		Region:          &d.Region,
		Description:     &d.Description,
	}
}

// Dinosaur is a persisted record. The name is the natural key used by the
// research pipeline to decide between create and update; lookups compare it
// byte for byte.
type Dinosaur struct {
	ID           string `json:"id" yaml:"id"`
	DinosaurInfo `yaml:",inline"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`

	// Images and Fossils are filled on detail reads. List reads fill Images only.
	Images  []Image  `json:"images,omitempty" yaml:"images,omitempty"`
	Fossils []Fossil `json:"fossils,omitempty" yaml:"fossils,omitempty"`
}

// DinosaurPatch is a partial update. Nil fields keep their stored value.
type DinosaurPatch struct {
	Name            *string  `json:"name,omitempty"`
	ScientificName  *string  `json:"scientific_name,omitempty"`
	Period          *string  `json:"period,omitempty"`
	Diet            *string  `json:"diet,omitempty"`
	LengthMinMeters *float64 `json:"length_min_meters,omitempty"`
	LengthMaxMeters *float64 `json:"length_max_meters,omitempty"`
	WeightMinTons   *float64 `json:"weight_min_tons,omitempty"`
	WeightMaxTons   *float64 `json:"weight_max_tons,omitempty"`
	Habitat         *string  `json:"habitat,omitempty"`
	Region          *string  `json:"region,omitempty"`
	Description     *string  `json:"description,omitempty"`
}

// Apply copies the non-nil fields of p onto d.
func (p DinosaurPatch) Apply(d *DinosaurInfo) {
	setString(&d.Name, p.Name)
	setString(&d.ScientificName, p.ScientificName)
	setString(&d.Period, p.Period)
	setString(&d.Diet, p.Diet)
	setFloat(&d.LengthMinMeters, p.LengthMinMeters)
	setFloat(&d.LengthMaxMeters, p.LengthMaxMeters)
	setFloat(&d.WeightMinTons, p.WeightMinTons)
	setFloat(&d.WeightMaxTons, p.WeightMaxTons)
	setString(&d.Habitat, p.Habitat)
	setString(&d.Region, p.Region)
	setString(&d.Description, p.Description)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst **float64, v *float64) {
	if v != nil {
		f := *v
		*dst = &f
	}
}

// Fossil is a fossil find attached to a dinosaur record. The extraction step
// produces fossils without ID or CreatedAt.
type Fossil struct {
	ID                string     `json:"id,omitempty" yaml:"id,omitempty"`
	DiscoveryLocation string     `json:"discovery_location" yaml:"discovery_location"`
	DiscoveryDate     string     `json:"discovery_date,omitempty" yaml:"discovery_date,omitempty"`
	FossilType        string     `json:"fossil_type" yaml:"fossil_type"`
	Description       string     `json:"description,omitempty" yaml:"description,omitempty"`
	ImageURL          string     `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Filter narrows a record listing. Search matches name, scientific name and
// description case-insensitively; Period and Diet match exactly.
type Filter struct {
	Search string
	Period string
	Diet   string
}
