package dialog

// State представляет состояние диалога согласно RFC 3261 §12
type State string

const (
	// StateNone диалог еще не образован
	StateNone State = "none"
	// StateEarly ранний диалог (получен 1xx с тегом)
	StateEarly State = "early"
	// StateConfirmed подтвержденный диалог (получен 2xx)
	StateConfirmed State = "confirmed"
	// StateTerminated диалог завершен
	StateTerminated State = "terminated"
)

// String возвращает строковое представление состояния
func (s State) String() string {
	return string(s)
}

// События конечного автомата диалога
const (
	eventConfirm   = "confirm"
	eventTerminate = "terminate"
)

// StateChangeHandler вызывается при каждом переходе состояния диалога
type StateChangeHandler func(State)
