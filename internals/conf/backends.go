package conf

import z "github.com/Oudwins/zog"

const (
	OutcomeBackendSQLite OutcomeBackendID = "sqlite"
	OutcomeBackendFile   OutcomeBackendID = "file"
)

type OutcomeBackendID string

var OutcomeBackendIDSchema = z.StringLike[OutcomeBackendID]().
	OneOf([]OutcomeBackendID{OutcomeBackendSQLite, OutcomeBackendFile}).
	DefaultFunc(func() OutcomeBackendID {
		return OutcomeBackendSQLite
	})

func (b OutcomeBackendID) String() string {
	return string(b)
}
