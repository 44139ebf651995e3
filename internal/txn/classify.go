package txn

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/rpc"
)

// Class is the failure category of a transaction error
type Class int

const (
	ClassGeneric Class = iota
	ClassUserRejected
	ClassNetworkMismatch
	ClassGasEstimation
)

// String returns the label used in logs and metrics
func (c Class) String() string {
	switch c {
	case ClassUserRejected:
		return "user_rejected"
	case ClassNetworkMismatch:
		return "network_mismatch"
	case ClassGasEstimation:
		return "gas_estimation"
	default:
		return "generic"
	}
}

// Extended reports whether errors of this class stay on screen longer
func (c Class) Extended() bool {
	return c == ClassNetworkMismatch || c == ClassGasEstimation
}

// Classifier maps wallet and RPC errors to a Class and a readable
// description
type Classifier interface {
	Classify(err error) Class
	Describe(err error) string
}

// Rule matches an error message against lower-case substrings
type Rule struct {
	Class      Class
	Substrings []string
}

// Description rewrites messages containing Substring
type Description struct {
	Substring string
	Text      string
}

// PolicyClassifier classifies by provider error code first and message
// substrings second. Rules are checked in order.
type PolicyClassifier struct {
	Codes        map[int]Class
	Rules        []Rule
	Descriptions []Description
	Fallback     string
}

// EIP-1193 provider error codes
const (
	CodeUserRejected        = 4001
	CodeChainDisconnected   = 4901
	CodeUnrecognizedChainID = 4902
)

// DefaultClassifier returns the classification policy of the web client
func DefaultClassifier() *PolicyClassifier {
	return &PolicyClassifier{
		Codes: map[int]Class{
			CodeUserRejected:        ClassUserRejected,
			CodeChainDisconnected:   ClassNetworkMismatch,
			CodeUnrecognizedChainID: ClassNetworkMismatch,
		},
		Rules: []Rule{
			{
				Class: ClassUserRejected,
				Substrings: []string{
					"user rejected",
					"user denied",
					"user cancelled",
					"request rejected",
					"rejected by user",
				},
			},
			{
				Class: ClassNetworkMismatch,
				Substrings: []string{
					"network changed",
					"network mismatch",
					"wrong network",
					"unsupported chain",
					"chain not configured",
				},
			},
			{
				Class: ClassGasEstimation,
				Substrings: []string{
					"gas required exceeds allowance",
					"gas required exceeds limit",
					"intrinsic gas too low",
					"out of gas",
					"gas estimation failed",
				},
			},
		},
		Descriptions: []Description{
			{Substring: "user rejected", Text: "Transaction was rejected by user"},
			{Substring: "insufficient funds", Text: "Insufficient funds for transaction"},
			{Substring: "gas required exceeds allowance", Text: "Insufficient balance for gas"},
			{Substring: "network mismatch", Text: "Please switch to the correct network"},
		},
		Fallback: "An unknown error occurred",
	}
}

// With returns a copy with extra rules appended
func (p *PolicyClassifier) With(rules ...Rule) *PolicyClassifier {
	cp := *p
	cp.Rules = append(append([]Rule(nil), p.Rules...), rules...)
	return &cp
}

// Classify implements Classifier
func (p *PolicyClassifier) Classify(err error) Class {
	if err == nil {
		return ClassGeneric
	}

	var coded rpc.Error
	if errors.As(err, &coded) {
		if class, ok := p.Codes[coded.ErrorCode()]; ok {
			return class
		}
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range p.Rules {
		for _, s := range rule.Substrings {
			if strings.Contains(msg, s) {
				return rule.Class
			}
		}
	}
	return ClassGeneric
}

// Describe implements Classifier. Known messages are replaced, others are
// returned with the first letter capitalized.
func (p *PolicyClassifier) Describe(err error) string {
	if err == nil || err.Error() == "" {
		return p.Fallback
	}

	raw := err.Error()
	msg := strings.ToLower(raw)
	for _, d := range p.Descriptions {
		if strings.Contains(msg, d.Substring) {
			return d.Text
		}
	}
	return capitalize(raw)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
