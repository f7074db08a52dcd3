package invite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClassifyStatus проверяет разбиение кодов ответа на классы
func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		code int
		want statusClass
	}{
		{100, classTrying},
		{101, classProvisional},
		{180, classProvisional},
		{183, classProvisional},
		{199, classProvisional},
		{200, classSuccess},
		{299, classSuccess},
		{300, classRedirect},
		{302, classRedirect},
		{399, classRedirect},
		{400, classFailure},
		{486, classFailure},
		{503, classFailure},
		{699, classFailure},
	}

	for _, tc := range cases {
		got, err := classifyStatus(tc.code)
		require.NoError(t, err, "code %d", tc.code)
		assert.Equal(t, tc.want, got, "code %d", tc.code)
	}
}

// TestClassifyStatusInvalid проверяет, что коды вне 100–699 фатальны
func TestClassifyStatusInvalid(t *testing.T) {
	for _, code := range []int{0, 99, 700, 1000, -1} {
		_, err := classifyStatus(code)
		require.Error(t, err, "code %d", code)
		assert.ErrorIs(t, err, ErrInvalidStatusCode)
	}
}

// TestClassString проверяет имена классов для метрик
func TestClassString(t *testing.T) {
	assert.Equal(t, "trying", classTrying.String())
	assert.Equal(t, "provisional", classProvisional.String())
	assert.Equal(t, "success", classSuccess.String())
	assert.Equal(t, "redirect", classRedirect.String())
	assert.Equal(t, "failure", classFailure.String())
}
