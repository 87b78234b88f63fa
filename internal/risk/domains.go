package risk

var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"guerrillamail.net": {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"temp-mail.org":     {},
	"throwawaymail.com": {},
	"yopmail.com":       {},
	"trashmail.com":     {},
	"getnada.com":       {},
	"sharklasers.com":   {},
	"dispostable.com":   {},
	"maildrop.cc":       {},
	"fakeinbox.com":     {},
	"mintemail.com":     {},
	"mohmal.com":        {},
	"emailondeck.com":   {},
	"spamgourmet.com":   {},
	"mailnesia.com":     {},
	"burnermail.io":     {},
}

var freeMailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"live.com":       {},
	"aol.com":        {},
	"icloud.com":     {},
	"me.com":         {},
	"proton.me":      {},
	"protonmail.com": {},
	"gmx.com":        {},
	"zoho.com":       {},
	"yandex.com":     {},
	"mail.com":       {},
}
