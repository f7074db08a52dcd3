package invite

import (
	"errors"
	"fmt"
)

// statusClass представляет закрытое множество классов ответа на INVITE.
//
// Диспетчеризация является тотальной функцией над этими классами; любое
// значение вне их — фатальное нарушение инварианта транспорта.
type statusClass int

const (
	// classTrying ровно 100 Trying
	classTrying statusClass = iota
	// classProvisional остальные 1xx (101–199)
	classProvisional
	// classSuccess 2xx
	classSuccess
	// classRedirect 3xx
	classRedirect
	// classFailure 4xx–6xx
	classFailure
)

var classNames = map[statusClass]string{
	classTrying:      "trying",
	classProvisional: "provisional",
	classSuccess:     "success",
	classRedirect:    "redirect",
	classFailure:     "failure",
}

func (c statusClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "unknown"
}

// ErrInvalidStatusCode код ответа вне диапазона 100–699. Транспортный слой
// обязан гарантировать корректный код, поэтому это не бизнес-ошибка,
// а нарушенное предусловие.
var ErrInvalidStatusCode = errors.New("недопустимый код ответа")

// classifyStatus относит код ответа ровно к одному классу
func classifyStatus(code int) (statusClass, error) {
	switch {
	case code == 100:
		return classTrying, nil
	case code > 100 && code < 200:
		return classProvisional, nil
	case code >= 200 && code < 300:
		return classSuccess, nil
	case code >= 300 && code < 400:
		return classRedirect, nil
	case code >= 400 && code < 700:
		return classFailure, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidStatusCode, code)
	}
}
