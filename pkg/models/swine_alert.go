package models

import (
	"fmt"
	"strconv"
	"strings"
)

// SwineAlertTable is the fact table every generated query reads from.
const SwineAlertTable = "swine_alert"

// ColumnType is the logical type of a fact table column.
type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnInteger ColumnType = "integer"
	ColumnReal    ColumnType = "real"
	ColumnDate    ColumnType = "date"
)

// ColumnDef describes one column of the fact table.
type ColumnDef struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	Description string     `json:"description"`
	// Internal columns are stored and loaded but not described to the model.
	Internal bool `json:"internal,omitempty"`
}

// SwineAlertColumns is the fixed column catalog of swine_alert, grouped by
// metric family. unique_id is the only non-null column.
var SwineAlertColumns = []ColumnDef{
	// Core Identifiers and Metadata
	{Name: "unique_id", Type: ColumnText, Description: "Unique record identifier"},
	{Name: "start_date", Type: ColumnText, Description: "Start date of reporting period"},
	{Name: "end_date", Type: ColumnText, Description: "End date of reporting period"},
	{Name: "operation", Type: ColumnText, Description: "Operational unit or region"},
	{Name: "gmf_id", Type: ColumnText, Description: "Global farm identifier"},
	{Name: "zalo_group_name", Type: ColumnText, Description: "Associated Zalo group name"},
	{Name: "farm_code", Type: ColumnText, Description: "Farm code identifier"},
	{Name: "farm_name", Type: ColumnText, Description: "Farm name"},
	{Name: "farm_type", Type: ColumnText, Description: "Farm type (e.g., farrow-to-finish, nursery)"},
	{Name: "report_barn_code", Type: ColumnText, Description: "Barn code as reported"},
	{Name: "system_barn_code", Type: ColumnText, Description: "System-generated barn code"},
	{Name: "barn_name", Type: ColumnText, Description: "Barn or building name"},
	{Name: "blood_type", Type: ColumnText, Description: "Blood or test type"},
	{Name: "flock_code", Type: ColumnText, Description: "Internal flock code"},
	{Name: "flock_name", Type: ColumnText, Description: "Internal flock name"},
	{Name: "farm_source", Type: ColumnText, Description: "Origin source of data"},
	{Name: "parent_barn", Type: ColumnText, Description: "Parent barn the reporting barn belongs to"},
	{Name: "jini_join_date", Type: ColumnText, Description: "Date the farm joined the monitoring system", Internal: true},
	{Name: "seq_num", Type: ColumnInteger, Description: "Source export sequence number", Internal: true},

	// Population & Mortality Metrics
	{Name: "begin_pop_total", Type: ColumnInteger, Description: "Beginning total population"},
	{Name: "begin_pop", Type: ColumnInteger, Description: "Beginning population for this record"},
	{Name: "daily_begin_pop", Type: ColumnInteger, Description: "Daily beginning population"},
	{Name: "piglet_in", Type: ColumnInteger, Description: "Number of piglets introduced"},
	{Name: "sales_transfer", Type: ColumnInteger, Description: "Number of pigs sold or transferred"},
	{Name: "death_culling_total", Type: ColumnInteger, Description: "Total death and culling count"},
	{Name: "dc_head", Type: ColumnInteger, Description: "Death/culling headcount"},
	{Name: "dc_begin_pop", Type: ColumnInteger, Description: "Population base for DC% calculation"},
	{Name: "dc_percent", Type: ColumnReal, Description: "Death/culling percentage (Primary KPI: >5% = critical)"},
	{Name: "ytd_head", Type: ColumnInteger, Description: "Year-to-date death count"},
	{Name: "ytd_total", Type: ColumnInteger, Description: "Year-to-date total population"},
	{Name: "ytd_percent", Type: ColumnReal, Description: "Year-to-date mortality percentage"},

	// Growth & Weight
	{Name: "pig_in_weight", Type: ColumnReal, Description: "Average weight of pigs on entry (kg)"},
	{Name: "pig_in_week_age", Type: ColumnInteger, Description: "Week age of pigs on entry"},
	{Name: "pig_in_day_age", Type: ColumnInteger, Description: "Day age of pigs on entry"},
	{Name: "estimated_weight", Type: ColumnReal, Description: "Estimated average weight (kg)"},
	{Name: "raise_week", Type: ColumnInteger, Description: "Week number in raising period"},
	{Name: "raise_day", Type: ColumnInteger, Description: "Day number in raising period"},
	{Name: "calculated_raising_week", Type: ColumnInteger, Description: "Calculated raising week"},
	{Name: "calculated_raising_day", Type: ColumnInteger, Description: "Calculated raising day"},
	{Name: "start_raising_date", Type: ColumnText, Description: "Date raising began"},
	{Name: "raising_type", Type: ColumnText, Description: "Type of raising system"},

	// Feed Metrics
	{Name: "feed_intake_actual", Type: ColumnReal, Description: "Actual feed intake (kg/day)"},
	{Name: "feed_intake_std", Type: ColumnReal, Description: "Standard feed intake (kg/day)"},
	{Name: "feed_type", Type: ColumnText, Description: "Feed type used"},
	{Name: "time_empty_feeder", Type: ColumnText, Description: "Times feeders were empty"},
	{Name: "cumulative_fi_before_jini", Type: ColumnReal, Description: "Cumulative feed intake before monitoring began (kg)"},

	// Temperature (Environmental Stability)
	{Name: "min_indoor_temperature", Type: ColumnReal, Description: "Minimum indoor temperature (°C)"},
	{Name: "max_indoor_temperature", Type: ColumnReal, Description: "Maximum indoor temperature (°C)"},
	{Name: "min_outdoor_temperature", Type: ColumnReal, Description: "Minimum outdoor temperature (°C)"},
	{Name: "max_outdoor_temperature", Type: ColumnReal, Description: "Maximum outdoor temperature (°C)"},

	// Disease Indicators
	{Name: "pneumonia_count", Type: ColumnInteger, Description: "Number of pigs with pneumonia"},
	{Name: "pneumonia_percent", Type: ColumnReal, Description: "Percent with pneumonia"},
	{Name: "diarrhea_count", Type: ColumnInteger, Description: "Number of pigs with diarrhea"},
	{Name: "diarrhea_percent", Type: ColumnReal, Description: "Percent with diarrhea"},
	{Name: "sudden_death_count", Type: ColumnInteger, Description: "Number of sudden deaths"},
	{Name: "sudden_death_percent", Type: ColumnReal, Description: "Percent sudden deaths"},
	{Name: "fever_count", Type: ColumnInteger, Description: "Number of pigs with fever"},
	{Name: "fever_percent", Type: ColumnReal, Description: "Percent with fever"},
	{Name: "convulsion_count", Type: ColumnInteger, Description: "Number of pigs with convulsions"},
	{Name: "convulsion_percent", Type: ColumnReal, Description: "Percent with convulsions"},
	{Name: "arthritis_count", Type: ColumnInteger, Description: "Number of arthritis cases"},
	{Name: "arthritis_percent", Type: ColumnReal, Description: "Percent arthritis cases"},
	{Name: "paralysis_count", Type: ColumnInteger, Description: "Number of paralysis cases"},
	{Name: "paralysis_percent", Type: ColumnReal, Description: "Percent paralysis cases"},

	// Disease & Vaccination Flags
	{Name: "prrs", Type: ColumnText, Description: "PRRS (Porcine Reproductive and Respiratory Syndrome) detection status"},
	{Name: "vaccination", Type: ColumnText, Description: "Vaccination status summary"},
	{Name: "extracted_vaccines", Type: ColumnText, Description: "List of vaccines administered"},
	{Name: "grade_b", Type: ColumnText, Description: "Farm grade or biosecurity rating"},

	// Biosecurity & Inspection Rounds
	{Name: "r1_gate_disinfection_pit", Type: ColumnText, Description: "Round 1 - Gate disinfection pit status"},
	{Name: "r1_insect_net", Type: ColumnText, Description: "Round 1 - Insect net installation"},
	{Name: "r1_lime_corridor", Type: ColumnText, Description: "Round 1 - Lime corridor status"},
	{Name: "r1_flies_detected", Type: ColumnText, Description: "Round 1 - Flies detected"},
	{Name: "r1_rats_detected", Type: ColumnText, Description: "Round 1 - Rats detected"},
	{Name: "r1_nst", Type: ColumnText, Description: "Round 1 - NST checkpoint status"},
	{Name: "r1_bran_warehouse", Type: ColumnText, Description: "Round 1 - Bran (feed) warehouse condition"},
	{Name: "r1_solution_for_failed_items", Type: ColumnText, Description: "Round 1 - Corrective action for failed items"},
	{Name: "r2_gate_disinfection_pit", Type: ColumnText, Description: "Round 2 - Gate disinfection pit status"},
	{Name: "r2_insect_net", Type: ColumnText, Description: "Round 2 - Insect net installation"},
	{Name: "r2_lime_corridor", Type: ColumnText, Description: "Round 2 - Lime corridor status"},
	{Name: "r2_flies_detected", Type: ColumnText, Description: "Round 2 - Flies detected"},
	{Name: "r2_rats_detected", Type: ColumnText, Description: "Round 2 - Rats detected"},
	{Name: "r2_nst", Type: ColumnText, Description: "Round 2 - NST checkpoint status"},
	{Name: "r2_bran_warehouse", Type: ColumnText, Description: "Round 2 - Bran (feed) warehouse condition"},
	{Name: "r2_solution_for_failed_items", Type: ColumnText, Description: "Round 2 - Corrective action for failed items"},

	// On-Site Activity (Biosecurity)
	{Name: "flies_mosquitoes_detected", Type: ColumnText, Description: "Flies or mosquitoes detected"},
	{Name: "rats_detected", Type: ColumnText, Description: "Rat detection status"},
	{Name: "wild_animals_detected", Type: ColumnText, Description: "Wild animal detection status"},
	{Name: "spraying_disinfectant", Type: ColumnText, Description: "Disinfectant spraying status"},
	{Name: "spraying_fly_poison", Type: ColumnText, Description: "Fly poison spraying status"},
	{Name: "sprinkling_rat_bait", Type: ColumnText, Description: "Rat bait application status"},

	// On-Site Entry (Plan vs Actual)
	{Name: "plan_on_date", Type: ColumnText, Description: "Planned date of site entry"},
	{Name: "plan_vehicles_entering", Type: ColumnInteger, Description: "Planned number of vehicles entering"},
	{Name: "plan_people_entering", Type: ColumnInteger, Description: "Planned number of people entering"},
	{Name: "plan_food_comes", Type: ColumnText, Description: "Planned feed delivery"},
	{Name: "plan_supplies", Type: ColumnText, Description: "Planned supplies delivery"},
	{Name: "actual_on_date", Type: ColumnText, Description: "Actual date of site entry"},
	{Name: "actual_vehicles_entering", Type: ColumnInteger, Description: "Actual number of vehicles entering"},
	{Name: "actual_people_entering", Type: ColumnInteger, Description: "Actual number of people entering"},
	{Name: "actual_food_comes", Type: ColumnText, Description: "Actual feed delivery"},
	{Name: "actual_supplies", Type: ColumnText, Description: "Actual supplies delivery"},

	// Alerts & Reports
	{Name: "alert_topic", Type: ColumnText, Description: "Alert topic or category"},
	{Name: "alert_type", Type: ColumnText, Description: "Alert severity type (e.g., critical, warning, info)"},
	{Name: "reason", Type: ColumnText, Description: "Reason or cause of the alert"},
	{Name: "solution", Type: ColumnText, Description: "Recommended solution or corrective action"},
	{Name: "conclude", Type: ColumnText, Description: "Overall conclusion or summary"},
	{Name: "report_date", Type: ColumnDate, Description: "Date when report was created"},

	// Source messages
	{Name: "fp_ah_message_id", Type: ColumnText, Description: "Source message id of the farm performance report", Internal: true},
	{Name: "vl_message_id", Type: ColumnText, Description: "Source message id of the vaccination log", Internal: true},
	{Name: "fc_message_id", Type: ColumnText, Description: "Source message id of the site entry form", Internal: true},
	{Name: "pc_message_id", Type: ColumnText, Description: "Source message id of the inspection rounds", Internal: true},
	{Name: "report_message_id", Type: ColumnText, Description: "Source message id of the alert report", Internal: true},
	{Name: "esc_0_text", Type: ColumnText, Description: "Escalation message, level 0", Internal: true},
	{Name: "esc_1_text", Type: ColumnText, Description: "Escalation message, level 1", Internal: true},
	{Name: "esc_2_text", Type: ColumnText, Description: "Escalation message, level 2", Internal: true},
}

// DescribedColumns returns the catalog without Internal columns, in order.
func DescribedColumns() []ColumnDef {
	out := make([]ColumnDef, 0, len(SwineAlertColumns))
	for _, c := range SwineAlertColumns {
		if !c.Internal {
			out = append(out, c)
		}
	}
	return out
}

var columnIndex = func() map[string]ColumnDef {
	idx := make(map[string]ColumnDef, len(SwineAlertColumns))
	for _, c := range SwineAlertColumns {
		idx[c.Name] = c
	}
	return idx
}()

// LookupColumn returns the catalog entry for a column name (case-insensitive).
func LookupColumn(name string) (ColumnDef, bool) {
	c, ok := columnIndex[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// AnalyticsRecord is one row of swine_alert. Absent values are simply missing
// from Fields; the pipeline never mutates a record after ingestion.
type AnalyticsRecord struct {
	UniqueID string         `json:"unique_id"`
	Fields   map[string]any `json:"fields"`
}

// Get returns the typed value of a column and whether it is present.
func (r *AnalyticsRecord) Get(column string) (any, bool) {
	if strings.EqualFold(column, "unique_id") {
		return r.UniqueID, true
	}
	v, ok := r.Fields[strings.ToLower(column)]
	return v, ok
}

// IsAbsent reports whether a raw ingested value means "no value".
func IsAbsent(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed == "" || trimmed == "NULL"
}

// NewAnalyticsRecord builds a record from raw string values keyed by column
// name. Empty strings and the literal NULL become absent values. Unknown
// columns are rejected so ingestion drift is caught early.
func NewAnalyticsRecord(raw map[string]string) (*AnalyticsRecord, error) {
	rec := &AnalyticsRecord{Fields: make(map[string]any)}

	for name, value := range raw {
		col, ok := LookupColumn(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		if IsAbsent(value) {
			continue
		}
		value = strings.TrimSpace(value)

		if col.Name == "unique_id" {
			rec.UniqueID = value
			continue
		}

		typed, err := parseColumnValue(col, value)
		if err != nil {
			return nil, err
		}
		rec.Fields[col.Name] = typed
	}

	if rec.UniqueID == "" {
		return nil, fmt.Errorf("unique_id is required")
	}
	return rec, nil
}

func parseColumnValue(col ColumnDef, value string) (any, error) {
	switch col.Type {
	case ColumnInteger:
		// Exports sometimes render integer columns as 12.0
		if f, err := strconv.ParseFloat(value, 64); err == nil && f == float64(int64(f)) {
			return int64(f), nil
		}
		return nil, fmt.Errorf("column %s: invalid integer %q", col.Name, value)
	case ColumnReal:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: invalid number %q", col.Name, value)
		}
		return f, nil
	default:
		return value, nil
	}
}
