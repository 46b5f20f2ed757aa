package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"routebinder/internal/models"
)

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		sec  int64
		want string
	}{
		{0, "0:00"},
		{-5, "0:00"},
		{75, "1:15"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSeconds(tt.sec))
	}
}

func TestMaterialText(t *testing.T) {
	assert.Equal(t, "", materialText(models.Material{}))
	assert.Equal(t, "Rock salt", materialText(models.Material{Product: "Rock salt"}))
	assert.Equal(t, "2.5 tons Rock salt", materialText(models.Material{Amount: models.Float(2.5), Unit: "tons", Product: "Rock salt"}))
}

func TestPlowText(t *testing.T) {
	assert.Equal(t, "", plowText(models.Plow{}))
	assert.Equal(t, "2 in, push to back lot", plowText(models.Plow{TargetInches: models.Float(2), Notes: "push to back lot"}))
}

func TestMissingWork(t *testing.T) {
	stop := models.Stop{}
	assert.Equal(t, "not arrived", missingWork(stop))

	stop.Progress.ArrivedAtTs = models.Int64(1000)
	stop.Work.Salt.Amount = models.Float(1)
	assert.Equal(t, "plow, salt not checked", missingWork(stop))

	stop.Checks.PlowDone = true
	stop.Work.Sidewalk.Amount = models.Float(3)
	assert.Equal(t, "salt, sidewalk not checked", missingWork(stop))

	stop.Progress.CompleteAtTs = models.Int64(2000)
	assert.Equal(t, "already complete", missingWork(stop))
}

func TestCheckItems(t *testing.T) {
	p := checkItems["salt"](true)
	if assert.NotNil(t, p.SaltDone) {
		assert.True(t, *p.SaltDone)
	}
	assert.Nil(t, p.PlowDone)

	p = checkItems["photo"](false)
	if assert.NotNil(t, p.PhotoCaptured) {
		assert.False(t, *p.PhotoCaptured)
	}
}
