package analytics

import (
	"analyticshub/internal/models"
)

type fieldMap map[string]string

// historicalFields maps warehouse column names onto canonical names.
var historicalFields = map[models.Family]fieldMap{
	models.FamilyDaily: {
		"date":        "date",
		"pageviews":   "pageViews",
		"sessions":    "sessions",
		"users":       "users",
		"bounce_rate": "bounceRate",
	},
	models.FamilyPages: {
		"page_path":   "path",
		"page_title":  "title",
		"pageviews":   "pageViews",
		"sessions":    "sessions",
		"bounce_rate": "bounceRate",
	},
	models.FamilyTraffic: {
		"source":    "source",
		"medium":    "medium",
		"sessions":  "sessions",
		"users":     "users",
		"new_users": "newUsers",
	},
	models.FamilyDevices: {
		"device_category": "deviceCategory",
		"sessions":        "sessions",
		"users":           "users",
	},
	models.FamilyGeo: {
		"country":   "country",
		"city":      "city",
		"sessions":  "sessions",
		"users":     "users",
		"new_users": "newUsers",
	},
	models.FamilySummary: {
		"pageviews":            "totalPageViews",
		"sessions":             "totalSessions",
		"users":                "totalUsers",
		"bounce_rate":          "bounceRate",
		"avg_session_duration": "averageSessionDuration",
	},
}

// liveFields maps runReport dimension and metric names onto canonical names.
var liveFields = map[models.Family]fieldMap{
	models.FamilyDaily: {
		"date":            "date",
		"screenPageViews": "pageViews",
		"sessions":        "sessions",
		"totalUsers":      "users",
		"bounceRate":      "bounceRate",
	},
	models.FamilyPages: {
		"pagePath":        "path",
		"pageTitle":       "title",
		"screenPageViews": "pageViews",
		"sessions":        "sessions",
		"bounceRate":      "bounceRate",
	},
	models.FamilyTraffic: {
		"sessionSource": "source",
		"sessionMedium": "medium",
		"sessions":      "sessions",
		"totalUsers":    "users",
		"newUsers":      "newUsers",
	},
	models.FamilyDevices: {
		"deviceCategory": "deviceCategory",
		"sessions":       "sessions",
		"totalUsers":     "users",
	},
	models.FamilyGeo: {
		"country":    "country",
		"city":       "city",
		"sessions":   "sessions",
		"totalUsers": "users",
		"newUsers":   "newUsers",
	},
	models.FamilySummary: {
		"screenPageViews":        "totalPageViews",
		"sessions":               "totalSessions",
		"totalUsers":             "totalUsers",
		"bounceRate":             "bounceRate",
		"averageSessionDuration": "averageSessionDuration",
	},
}

// liveAliases are native live names reported by older property setups. An
// alias is read only when its preferred name is absent from the row.
var liveAliases = map[string]string{
	"activeUsers": "totalUsers",
}

func fieldsFor(provider models.Provider, family models.Family) fieldMap {
	switch provider {
	case models.ProviderHistorical:
		return historicalFields[family]
	case models.ProviderLive:
		return liveFields[family]
	default:
		return nil
	}
}

// Normalize renames provider-native keys to canonical keys. Keys with no
// mapping keep their name. It never validates or defaults values, returns
// one row per input row in input order, and leaves the input untouched.
func Normalize(rows []models.Row, provider models.Provider, family models.Family) []models.Row {
	fields := fieldsFor(provider, family)
	var aliases map[string]string
	if provider == models.ProviderLive {
		aliases = liveAliases
	}
	out := make([]models.Row, len(rows))
	for i, row := range rows {
		out[i] = renameRow(row, fields, aliases)
	}
	return out
}

func renameRow(row models.Row, fields fieldMap, aliases map[string]string) models.Row {
	out := make(models.Row, len(row))
	// Mapped keys first so a pass-through key that happens to equal a
	// canonical name never shadows a renamed value.
	for native, v := range row {
		if canonical, ok := fields[native]; ok {
			out[canonical] = v
		}
	}
	for native, v := range row {
		if _, ok := fields[native]; ok {
			continue
		}
		if preferred, ok := aliases[native]; ok {
			if _, present := row[preferred]; !present {
				if canonical, ok := fields[preferred]; ok {
					out[canonical] = v
					continue
				}
			}
		}
		if _, taken := out[native]; !taken {
			out[native] = v
		}
	}
	return out
}
