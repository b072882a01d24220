package models_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"analyticshub/internal/models"
	"analyticshub/internal/testsupport"
)

func TestParseFamily(t *testing.T) {
	for _, f := range models.AllFamilies {
		got, err := models.ParseFamily(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := models.ParseFamily("funnels")
	assert.ErrorContains(t, err, `unknown metric family: "funnels"`)
}

func TestProviderString(t *testing.T) {
	assert.Equal(t, "historical", models.ProviderHistorical.String())
	assert.Equal(t, "live", models.ProviderLive.String())
	assert.Equal(t, "unknown", models.Provider(0).String())
}

func TestRowCloneAndLookup(t *testing.T) {
	row := models.Row{"pagePath": "/home", "sessions": nil}
	clone := row.Clone()
	clone["pagePath"] = "/about"

	assert.Equal(t, "/home", row["pagePath"])

	v, ok := row.Lookup("pagePath")
	assert.True(t, ok)
	assert.Equal(t, "/home", v)

	_, ok = row.Lookup("sessions")
	assert.False(t, ok)
	_, ok = row.Lookup("users")
	assert.False(t, ok)
}

func TestPerformWrite(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	err := models.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Exec("INSERT INTO ua_daily (date, pageviews, sessions, users, new_users) VALUES (?, ?, ?, ?, ?)",
			"2023-01-01", 10, 5, 4, 1).Error
	})
	require.NoError(t, err)

	err = models.PerformWrite(logger, db, func(tx *gorm.DB) error {
		if err := tx.Exec("INSERT INTO ua_daily (date, pageviews, sessions, users, new_users) VALUES (?, ?, ?, ?, ?)",
			"2023-01-02", 10, 5, 4, 1).Error; err != nil {
			return err
		}
		return errors.New("rollback")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Table("ua_daily").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
