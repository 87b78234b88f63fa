// Package risk scores registering businesses. The heuristics are
// deterministic pattern checks; the thresholds come from configuration.
package risk

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/angelmondragon/proppilot-backend/pkg/config"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	"github.com/go-playground/validator/v10"
)

const (
	FlagDisposableEmail     = "disposable_email"
	FlagFreeEmailProvider   = "free_email_provider"
	FlagMissingPhone        = "missing_phone"
	FlagInvalidPhoneFormat  = "invalid_phone_format"
	FlagSuspiciousLocalPart = "suspicious_email_local_part"
	FlagInvalidEmail        = "invalid_email"

	FlagInvalidLicenseFormat = "invalid_license_format"
	FlagInvalidTaxIDFormat   = "invalid_tax_id_format"
	FlagShortAddress         = "short_address"
	FlagShortBusinessName    = "short_business_name"
)

const (
	penaltyDisposableEmail = 60
	penaltyFreeEmail       = 20
	penaltyPhone           = 30
	penaltyLocalPart       = 10

	weightLicense = 35
	weightTaxID   = 35
	weightAddress = 20
	weightName    = 10

	minPhoneLength   = 11
	minAddressLength = 10
	minNameLength    = 3
)

var (
	licensePattern = regexp.MustCompile(`^[A-Z]{0,4}-?[0-9]{5,12}$`)
	einPattern     = regexp.MustCompile(`^[0-9]{2}-?[0-9]{7}$`)
	phoneStrip     = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// Input carries the business contact fields submitted at registration.
type Input struct {
	BusinessName  string
	Email         string
	Phone         string
	Address       string
	LicenseNumber string
	TaxID         string
}

// FraudResult is the outcome of the contact-channel heuristic.
type FraudResult struct {
	Score  int      `json:"score"`
	Flags  []string `json:"flags"`
	Passed bool     `json:"passed"`
}

// RiskResult is the outcome of the business-identity heuristic.
type RiskResult struct {
	Score    int                      `json:"score"`
	Flags    []string                 `json:"flags"`
	Decision enums.VerificationStatus `json:"decision"`
}

// Evaluation combines both checks into the initial verification decision.
type Evaluation struct {
	Fraud    FraudResult              `json:"fraud"`
	Risk     RiskResult               `json:"risk"`
	Decision enums.VerificationStatus `json:"decision"`
}

// Flags returns the flags that justify the decision: the fraud flags when the
// fraud gate failed, otherwise the risk flags.
func (e Evaluation) Flags() []string {
	if !e.Fraud.Passed {
		return e.Fraud.Flags
	}
	return e.Risk.Flags
}

// Scorer evaluates registrations against configured thresholds.
type Scorer struct {
	cfg      config.RiskConfig
	validate *validator.Validate
}

// NewScorer constructs a scorer.
func NewScorer(cfg config.RiskConfig) *Scorer {
	return &Scorer{cfg: cfg, validate: validator.New()}
}

// Evaluate runs both checks. A failing fraud check rejects regardless of the
// risk score.
func (s *Scorer) Evaluate(in Input) Evaluation {
	fraud := s.FraudCheck(in)
	assessment := s.Assess(in)
	decision := assessment.Decision
	if !fraud.Passed {
		decision = enums.VerificationStatusRejected
	}
	return Evaluation{Fraud: fraud, Risk: assessment, Decision: decision}
}

// FraudCheck scores the email and phone channels, starting from 100.
func (s *Scorer) FraudCheck(in Input) FraudResult {
	score := 100
	flags := []string{}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	local, domain, ok := strings.Cut(email, "@")
	switch {
	case !ok || s.validate.Var(email, "required,email") != nil:
		score -= penaltyDisposableEmail
		flags = append(flags, FlagInvalidEmail)
	case isDisposable(domain):
		score -= penaltyDisposableEmail
		flags = append(flags, FlagDisposableEmail)
	case isFreeMail(domain):
		score -= penaltyFreeEmail
		flags = append(flags, FlagFreeEmailProvider)
	}
	if ok && numericHeavy(local) {
		score -= penaltyLocalPart
		flags = append(flags, FlagSuspiciousLocalPart)
	}

	phone := strings.TrimSpace(in.Phone)
	switch {
	case phone == "":
		score -= penaltyPhone
		flags = append(flags, FlagMissingPhone)
	case !s.validPhone(phone):
		score -= penaltyPhone
		flags = append(flags, FlagInvalidPhoneFormat)
	}

	score = clamp(score)
	return FraudResult{Score: score, Flags: flags, Passed: score >= s.cfg.FraudPassThreshold}
}

// Assess scores license, tax id, address and name completeness.
func (s *Scorer) Assess(in Input) RiskResult {
	score := 0
	flags := []string{}

	if licensePattern.MatchString(strings.ToUpper(strings.TrimSpace(in.LicenseNumber))) {
		score += weightLicense
	} else {
		flags = append(flags, FlagInvalidLicenseFormat)
	}
	if einPattern.MatchString(strings.TrimSpace(in.TaxID)) {
		score += weightTaxID
	} else {
		flags = append(flags, FlagInvalidTaxIDFormat)
	}
	if len([]rune(strings.TrimSpace(in.Address))) >= minAddressLength {
		score += weightAddress
	} else {
		flags = append(flags, FlagShortAddress)
	}
	if len([]rune(strings.TrimSpace(in.BusinessName))) >= minNameLength {
		score += weightName
	} else {
		flags = append(flags, FlagShortBusinessName)
	}

	score = clamp(score)
	return RiskResult{Score: score, Flags: flags, Decision: s.decide(score)}
}

func (s *Scorer) decide(score int) enums.VerificationStatus {
	switch {
	case score >= s.cfg.ApproveThreshold:
		return enums.VerificationStatusApproved
	case score >= s.cfg.ReviewThreshold:
		return enums.VerificationStatusManualReview
	default:
		return enums.VerificationStatusRejected
	}
}

// NormalizePhone strips formatting and assumes a North American number when
// ten digits are given without a country code.
func NormalizePhone(raw string) string {
	stripped := phoneStrip.Replace(strings.TrimSpace(raw))
	if strings.HasPrefix(stripped, "+") {
		return stripped
	}
	if len(stripped) == 10 {
		return "+1" + stripped
	}
	return "+" + stripped
}

func (s *Scorer) validPhone(raw string) bool {
	normalized := NormalizePhone(raw)
	return len(normalized) >= minPhoneLength && s.validate.Var(normalized, "e164") == nil
}

func isDisposable(domain string) bool {
	_, ok := disposableDomains[domain]
	return ok
}

func isFreeMail(domain string) bool {
	_, ok := freeMailDomains[domain]
	return ok
}

// numericHeavy flags mailboxes like 48213377x where digits dominate.
func numericHeavy(local string) bool {
	digits := 0
	for _, r := range local {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 5 && digits*2 > len(local)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
