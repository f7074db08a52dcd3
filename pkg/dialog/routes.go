package dialog

import (
	"github.com/emiago/sipgo/sip"
)

// extractRecordRoutes извлекает Record-Route заголовки из ответа и строит
// route set для UAC: порядок заголовков инвертируется (RFC 3261 §12.1.2)
func extractRecordRoutes(res *sip.Response) []sip.RouteHeader {
	recordRoutes := res.GetHeaders("Record-Route")
	routes := make([]sip.RouteHeader, 0, len(recordRoutes))

	for i := len(recordRoutes) - 1; i >= 0; i-- {
		rrValue := recordRoutes[i].Value()
		if uri := extractURIFromHeaderValue(rrValue); uri != nil {
			routes = append(routes, sip.RouteHeader{
				Address: *uri,
			})
		}
	}

	return routes
}

// extractURIFromHeaderValue извлекает URI из значения заголовка (From, To,
// Contact, Record-Route). Сначала ищем форму <uri>, иначе парсим всю строку.
func extractURIFromHeaderValue(value string) *sip.Uri {
	start := -1
	end := -1

	for i, ch := range value {
		if ch == '<' {
			start = i + 1
		} else if ch == '>' && start != -1 {
			end = i
			break
		}
	}

	if start != -1 && end != -1 && end > start {
		uriStr := value[start:end]
		var uri sip.Uri
		if err := sip.ParseUri(uriStr, &uri); err == nil {
			return &uri
		}
	}

	var uri sip.Uri
	if err := sip.ParseUri(value, &uri); err == nil {
		return &uri
	}

	return nil
}

// extractContactURI извлекает URI из заголовка Contact ответа,
// nil если Contact отсутствует или не парсится
func extractContactURI(res *sip.Response) *sip.Uri {
	contact := res.GetHeader("Contact")
	if contact == nil {
		return nil
	}
	return extractURIFromHeaderValue(contact.Value())
}
