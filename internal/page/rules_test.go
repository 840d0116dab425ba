package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetsetgo/till-bridge/internal/config"
)

func TestEngine_DetectCheckout(t *testing.T) {
	e, err := NewEngine(DefaultRules()...)
	require.NoError(t, err)

	rules := e.Detect("https://pos.example.com/pos/checkout?cart=12")
	require.Len(t, rules, 2)
	assert.Equal(t, "button[name=complete_sale]", rules[0].Selector)
	assert.Equal(t, "button[name=cash_payment]", rules[1].Selector)
}

func TestEngine_RegexpRule(t *testing.T) {
	e, err := NewEngine(DefaultRules()...)
	require.NoError(t, err)

	assert.True(t, e.IsSupported("https://pos.example.com/pos/register/7/cash-in"))
	assert.True(t, e.IsSupported("https://pos.example.com/pos/register/12/cash-out"))
	assert.False(t, e.IsSupported("https://pos.example.com/pos/register/abc/cash-in"))
}

func TestEngine_UnsupportedPage(t *testing.T) {
	e, err := NewEngine(DefaultRules()...)
	require.NoError(t, err)

	assert.False(t, e.IsSupported("https://pos.example.com/reports/daily"))
	assert.Empty(t, e.Detect("https://pos.example.com/reports/daily"))
}

func TestEngine_AddRejectsInvalid(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	assert.ErrorIs(t, e.Add(PageRule{URLPattern: "/pos/x"}), ErrInvalidRule)
	assert.ErrorIs(t, e.Add(PageRule{Selector: "button"}), ErrInvalidRule)
	assert.Error(t, e.Add(PageRule{URLPattern: "([", Regexp: true, Selector: "button"}))
	assert.Empty(t, e.Rules())
}

func TestEngine_Remove(t *testing.T) {
	e, err := NewEngine(DefaultRules()...)
	require.NoError(t, err)
	before := len(e.Rules())

	assert.True(t, e.Remove("/pos/checkout", "button[name=cash_payment]"))
	assert.Len(t, e.Rules(), before-1)
	assert.Len(t, e.Detect("/pos/checkout"), 1)

	assert.True(t, e.Remove("/pos/checkout", ""))
	assert.False(t, e.IsSupported("/pos/checkout"))

	assert.False(t, e.Remove("/pos/nowhere", ""))
}

func TestNewEngineFromConfig(t *testing.T) {
	cfg := config.PageConfig{
		Rules: []config.RuleConfig{{
			URLPattern:       "/pos/tips",
			Selector:         "button.tip-out",
			DrawerButtonText: "Open Drawer & Tip Out",
		}},
	}

	e, err := NewEngineFromConfig(cfg)
	require.NoError(t, err)
	assert.Len(t, e.Rules(), len(DefaultRules())+1)
	assert.True(t, e.IsSupported("/pos/tips"))

	cfg.DisableDefaultRules = true
	e, err = NewEngineFromConfig(cfg)
	require.NoError(t, err)
	assert.Len(t, e.Rules(), 1)
	assert.False(t, e.IsSupported("/pos/checkout"))
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "on"} {
		assert.True(t, isTruthy(v), v)
	}
	for _, v := range []string{"", "0", "false", "off", "no"} {
		assert.False(t, isTruthy(v), v)
	}
}
