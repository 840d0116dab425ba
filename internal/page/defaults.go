package page

// DefaultRules is the built-in table of POS buttons that open the drawer
func DefaultRules() []PageRule {
	return []PageRule{
		{
			URLPattern:         "/pos/checkout",
			Selector:           "button[name=complete_sale]",
			DrawerButtonText:   "Open Drawer & Complete Sale",
			OriginalButtonText: "Complete Sale",
			Description:        "Checkout: complete sale",
			SkipIfWriteoff:     true,
		},
		{
			URLPattern:         "/pos/checkout",
			Selector:           "button[name=cash_payment]",
			DrawerButtonText:   "Open Drawer & Take Cash",
			OriginalButtonText: "Take Cash",
			Description:        "Checkout: cash tender",
			SkipIfWriteoff:     true,
		},
		{
			URLPattern:                  "/pos/refund",
			Selector:                    "button[name=confirm_refund]",
			DrawerButtonText:            "Open Drawer & Refund",
			OriginalButtonText:          "Confirm Refund",
			Description:                 "Refund confirmation",
			RequireSessionRegisterMatch: true,
		},
		{
			URLPattern:                  "/pos/register/close",
			Selector:                    "button[name=close_register]",
			DrawerButtonText:            "Open Drawer & Close Register",
			OriginalButtonText:          "Close Register",
			Description:                 "End of day cash count",
			RequireSessionRegisterMatch: true,
		},
		{
			URLPattern:                  `/pos/register/\d+/cash-(in|out)`,
			Regexp:                      true,
			Selector:                    "form.cash-movement button[type=submit]",
			DrawerButtonText:            "Open Drawer & Save",
			OriginalButtonText:          "Save",
			Description:                 "Cash in / cash out",
			RequireSessionRegisterMatch: true,
		},
		{
			URLPattern:         "/pos/payout",
			Selector:           "button[name=payout]",
			DrawerButtonText:   "Open Drawer & Pay Out",
			OriginalButtonText: "Pay Out",
			Description:        "Petty cash payout",
		},
	}
}
