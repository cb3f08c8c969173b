package testhelpers

import (
	"testing"
	"time"

	"github.com/ekaya-inc/herdwise/pkg/models"
)

// SampleRows are raw swine_alert rows as an export would deliver them,
// including the empty and NULL spellings of absent values.
var SampleRows = []map[string]string{
	{
		"unique_id": "F001-B1-0001", "farm_code": "F001", "farm_name": "Green Valley",
		"barn_name": "B1", "dc_percent": "6.2", "ytd_percent": "11.5", "dc_head": "31",
		"begin_pop": "500", "fever_percent": "4.0", "max_indoor_temperature": "33.5",
		"min_indoor_temperature": "24.0", "feed_intake_actual": "1.8", "feed_intake_std": "2.0",
		"r1_rats_detected": "Yes", "alert_type": "critical", "reason": "NULL",
	},
	{
		"unique_id": "F001-B2-0002", "farm_code": "F001", "farm_name": "Green Valley",
		"barn_name": "B2", "dc_percent": "2.1", "ytd_percent": "4.0", "dc_head": "9",
		"begin_pop": "430", "fever_percent": "", "max_indoor_temperature": "30.0",
		"min_indoor_temperature": "26.5", "feed_intake_actual": "2.1", "feed_intake_std": "2.0",
		"alert_type": "info",
	},
	{
		"unique_id": "F002-B1-0003", "farm_code": "F002", "farm_name": "Hill Side",
		"barn_name": "B1", "dc_percent": "3.7", "ytd_percent": "8.2", "dc_head": "22",
		"begin_pop": "600", "fever_percent": "2.5", "max_indoor_temperature": "31.0",
		"min_indoor_temperature": "25.0", "feed_intake_actual": "1.9", "feed_intake_std": "2.0",
		"alert_type": "warning",
	},
	{
		"unique_id": "F003-B1-0004", "farm_code": "F003", "farm_name": "River Bend",
		"barn_name": "B1", "dc_percent": "1.2", "ytd_percent": "2.9", "dc_head": "5",
		"begin_pop": "410", "fever_percent": "0.5", "max_indoor_temperature": "29.0",
		"min_indoor_temperature": "27.0", "feed_intake_actual": "2.0", "feed_intake_std": "2.0",
		"alert_type": "info",
	},
}

// SampleRecords normalizes SampleRows, dating each row relative to today so
// date-window queries see them.
func SampleRecords(t *testing.T) []*models.AnalyticsRecord {
	t.Helper()

	today := time.Now().UTC()
	records := make([]*models.AnalyticsRecord, 0, len(SampleRows))
	for i, raw := range SampleRows {
		row := make(map[string]string, len(raw)+1)
		for k, v := range raw {
			row[k] = v
		}
		row["report_date"] = today.AddDate(0, 0, -i).Format(time.DateOnly)

		rec, err := models.NewAnalyticsRecord(row)
		if err != nil {
			t.Fatalf("sample row %d: %v", i, err)
		}
		records = append(records, rec)
	}
	return records
}

// SampleFarmCodes returns the distinct farm codes in SampleRows, in order.
func SampleFarmCodes() []string {
	seen := map[string]bool{}
	var codes []string
	for _, raw := range SampleRows {
		if code := raw["farm_code"]; !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}
