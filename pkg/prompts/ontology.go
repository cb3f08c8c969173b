// Package prompts builds the instruction sets handed to the language model
// at each pipeline stage.
package prompts

import (
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/herdwise/pkg/models"
)

const (
	ontologyVersion   = "1.1"
	ontologyNamespace = "swine_farm_ontology"
)

type ontologyDoc struct {
	Version   string                    `yaml:"version"`
	Namespace string                    `yaml:"namespace"`
	Entities  map[string]ontologyEntity `yaml:"entities"`
}

type ontologyEntity struct {
	Table         string           `yaml:"table"`
	Description   string           `yaml:"description"`
	Columns       []ontologyColumn `yaml:"columns"`
	QueryPatterns []QueryPattern   `yaml:"common_query_patterns,omitempty"`
}

type ontologyColumn struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Nullable    bool   `yaml:"nullable"`
	Description string `yaml:"description"`
}

// QueryPattern is a worked example included in the ontology.
type QueryPattern struct {
	Name string `yaml:"name"`
	SQL  string `yaml:"sql"`
}

// CommonQueryPatterns are the canonical questions analysts ask of the
// fact table, written in the warehouse dialect.
var CommonQueryPatterns = []QueryPattern{
	{
		Name: "high_mortality",
		SQL: `SELECT farm_name, barn_name, dc_percent, dc_head, report_date
FROM swine_alert
WHERE dc_percent > 5.0
ORDER BY dc_percent DESC
LIMIT 10`,
	},
	{
		Name: "temperature_instability",
		SQL: `SELECT farm_name, min_indoor_temperature, max_indoor_temperature,
       (max_indoor_temperature - min_indoor_temperature) AS temp_variance
FROM swine_alert
WHERE (max_indoor_temperature - min_indoor_temperature) > 10
ORDER BY temp_variance DESC
LIMIT 10`,
	},
	{
		Name: "disease_outbreaks",
		SQL: `SELECT farm_name,
       (pneumonia_percent + diarrhea_percent + fever_percent + sudden_death_percent) AS total_affected_percent
FROM swine_alert
WHERE (pneumonia_percent + diarrhea_percent + fever_percent + sudden_death_percent) > 10
ORDER BY total_affected_percent DESC
LIMIT 10`,
	},
	{
		Name: "critical_alerts",
		SQL: `SELECT farm_name, alert_type, alert_topic, reason, solution, report_date
FROM swine_alert
WHERE alert_type = 'critical'
ORDER BY report_date DESC
LIMIT 20`,
	},
	{
		Name: "biosecurity_issues",
		SQL: `SELECT farm_name, rats_detected, flies_mosquitoes_detected, wild_animals_detected, r1_gate_disinfection_pit
FROM swine_alert
WHERE rats_detected = 'detected'
   OR flies_mosquitoes_detected = 'detected'
   OR wild_animals_detected = 'detected'
LIMIT 20`,
	},
}

var (
	ontologyOnce sync.Once
	ontologyText string
	ontologyErr  error
)

// Ontology returns the schema description of swine_alert given to the
// translator. It is rendered once from the column catalog.
func Ontology() (string, error) {
	ontologyOnce.Do(func() {
		ontologyText, ontologyErr = RenderOntology(models.DescribedColumns(), CommonQueryPatterns)
	})
	return ontologyText, ontologyErr
}

// RenderOntology renders columns and patterns as the YAML ontology document.
func RenderOntology(columns []models.ColumnDef, patterns []QueryPattern) (string, error) {
	entity := ontologyEntity{
		Table: models.SwineAlertTable,
		Description: "Integrated dataset combining farm operations, environmental metrics, " +
			"mortality data, disease indicators, vaccination details, and biosecurity checks " +
			"for swine farms. One row per farm, barn and reporting period.",
		QueryPatterns: patterns,
	}
	for _, c := range columns {
		entity.Columns = append(entity.Columns, ontologyColumn{
			Name:        c.Name,
			Type:        strings.ToUpper(string(c.Type)),
			Nullable:    c.Name != "unique_id",
			Description: c.Description,
		})
	}

	doc := ontologyDoc{
		Version:   ontologyVersion,
		Namespace: ontologyNamespace,
		Entities:  map[string]ontologyEntity{"swine_dataset": entity},
	}

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encode ontology: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode ontology: %w", err)
	}
	return b.String(), nil
}
