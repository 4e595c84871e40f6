// Package records holds the presentation rules for collection records:
// which fields are searchable, how status filters resolve, and how fields
// are labeled and ordered for display.
package records

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Kind tells the dashboard how to render a field value.
type Kind string

const (
	KindText       Kind = "text"
	KindDate       Kind = "date"
	KindImage      Kind = "image"
	KindPercentage Kind = "percentage"
	KindArray      Kind = "array"
)

// FieldConfig is the display metadata for one record field.
type FieldConfig struct {
	Label string `json:"label"`
	Order int    `json:"order"`
	Kind  Kind   `json:"kind"`
}

// fallbackOrder sorts unconfigured extension fields after every known field.
const fallbackOrder = 999

// hiddenFields never appear in display output regardless of collection.
var hiddenFields = map[string]bool{
	"id":           true,
	"docPath":      true,
	"embedding":    true,
	"embeddings":   true,
	"vector":       true,
	"searchVector": true,
}

var foundFields = map[string]FieldConfig{
	"ref":            {Label: "Référence", Order: 1, Kind: KindText},
	"type":           {Label: "Type d'objet", Order: 2, Kind: KindText},
	"description":    {Label: "Description", Order: 3, Kind: KindText},
	"location":       {Label: "Lieu de découverte", Order: 4, Kind: KindText},
	"pickupLocation": {Label: "Lieu de récupération", Order: 5, Kind: KindText},
	"email":          {Label: "Email contact", Order: 6, Kind: KindText},
	"phone":          {Label: "Téléphone contact", Order: 7, Kind: KindText},
	"volId":          {Label: "ID Vol", Order: 8, Kind: KindText},
	"status":         {Label: "Statut", Order: 9, Kind: KindText},
	"image":          {Label: "Image", Order: 10, Kind: KindImage},
	"createdAt":      {Label: "Date de création", Order: 11, Kind: KindDate},
	"updatedAt":      {Label: "Dernière modification", Order: 12, Kind: KindDate},
}

var lostFields = map[string]FieldConfig{
	"ref":               {Label: "Référence", Order: 1, Kind: KindText},
	"type":              {Label: "Type d'objet", Order: 2, Kind: KindText},
	"description":       {Label: "Description", Order: 3, Kind: KindText},
	"additionalDetails": {Label: "Détails supplémentaires", Order: 4, Kind: KindText},
	"location":          {Label: "Dernière localisation connue", Order: 5, Kind: KindText},
	"color":             {Label: "Couleurs", Order: 6, Kind: KindArray},
	"ownerId":           {Label: "ID Propriétaire", Order: 7, Kind: KindText},
	"userId":            {Label: "ID Utilisateur", Order: 8, Kind: KindText},
	"status":            {Label: "Statut", Order: 9, Kind: KindText},
	"imageUrl":          {Label: "Image", Order: 10, Kind: KindImage},
	"createdAt":         {Label: "Date de création", Order: 11, Kind: KindDate},
	"updatedAt":         {Label: "Dernière modification", Order: 12, Kind: KindDate},
}

var ownerFields = map[string]FieldConfig{
	"firstName":        {Label: "Prénom", Order: 1, Kind: KindText},
	"lastName":         {Label: "Nom", Order: 2, Kind: KindText},
	"email":            {Label: "Email", Order: 3, Kind: KindText},
	"phone":            {Label: "Téléphone", Order: 4, Kind: KindText},
	"PNR":              {Label: "PNR", Order: 5, Kind: KindText},
	"userId":           {Label: "ID Utilisateur", Order: 6, Kind: KindText},
	"lostObjectsCount": {Label: "Nombre d'objets perdus", Order: 7, Kind: KindText},
	"createdAt":        {Label: "Date d'inscription", Order: 8, Kind: KindDate},
}

var matchFields = map[string]FieldConfig{
	"foundId": {Label: "ID Objet trouvé", Order: 1, Kind: KindText},
	"lostId":  {Label: "ID Objet perdu", Order: 2, Kind: KindText},
	// Aliases kept for documents written by an older matcher.
	"foundObjectId": {Label: "ID Objet trouvé", Order: 1, Kind: KindText},
	"lostObjectId":  {Label: "ID Objet perdu", Order: 2, Kind: KindText},
	"score":         {Label: "Score de correspondance", Order: 3, Kind: KindPercentage},
	"userId":        {Label: "ID Utilisateur", Order: 4, Kind: KindText},
	"status":        {Label: "Statut", Order: 5, Kind: KindText},
	"timestamp":     {Label: "Date de match", Order: 6, Kind: KindDate},
	"createdAt":     {Label: "Date de match", Order: 6, Kind: KindDate},
}

var configsByCollection = map[string]map[string]FieldConfig{
	"found":   foundFields,
	"lost":    lostFields,
	"owners":  ownerFields,
	"matches": matchFields,
}

// Config returns the field configuration for a collection. Unknown
// collections get an empty config, so every field falls back.
func Config(collection string) map[string]FieldConfig {
	if cfg, ok := configsByCollection[collection]; ok {
		return cfg
	}
	return map[string]FieldConfig{}
}

// DisplayField is one labeled, ordered field value ready for rendering.
// Text carries the value already formatted for its kind so clients do not
// have to reimplement percentage or list rendering.
type DisplayField struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Order int    `json:"order"`
	Kind  Kind   `json:"kind"`
	Value any    `json:"value"`
	Text  string `json:"text"`
}

// DisplayFields filters, labels and orders a record's fields for display.
// Hidden fields and empty values are dropped; fields without configuration
// get a generated label and sort last.
func DisplayFields(collection string, item map[string]any) []DisplayField {
	cfg := Config(collection)
	out := make([]DisplayField, 0, len(item))
	for key, value := range item {
		if hiddenFields[key] || isEmptyValue(value) {
			continue
		}
		fc, ok := cfg[key]
		if !ok {
			fc = FieldConfig{Label: FallbackLabel(key), Order: fallbackOrder, Kind: KindText}
		}
		out = append(out, DisplayField{
			Key: key, Label: fc.Label, Order: fc.Order, Kind: fc.Kind,
			Value: value, Text: FormatValue(value, fc.Kind),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// FallbackLabel derives a human label from a camelCase field name:
// "pickupLocation" becomes "Pickup Location".
func FallbackLabel(key string) string {
	if key == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range key {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatValue renders a field value as display text.
func FormatValue(value any, kind Kind) string {
	if isEmptyValue(value) {
		return "N/A"
	}
	switch kind {
	case KindPercentage:
		if f, ok := asFloat(value); ok {
			return fmt.Sprintf("%.1f%%", f*100)
		}
	case KindArray:
		if items, ok := value.([]string); ok {
			return strings.Join(items, ", ")
		}
		if items, ok := value.([]any); ok {
			parts := make([]string, 0, len(items))
			for _, item := range items {
				parts = append(parts, fmt.Sprint(item))
			}
			return strings.Join(parts, ", ")
		}
	}
	return fmt.Sprint(value)
}

// AsMap converts a record struct into the flat field map DisplayFields
// expects. The extension map is flattened into top-level keys so unmodeled
// fields display individually.
func AsMap(record any) map[string]any {
	raw, err := json.Marshal(record)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	if extra, ok := m["extra"].(map[string]any); ok {
		delete(m, "extra")
		for key, value := range extra {
			if _, exists := m[key]; !exists {
				m[key] = value
			}
		}
	}
	return m
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
