package dialog

// SDPContentType тип содержимого по умолчанию для тел сессии
const SDPContentType = "application/sdp"

// Body представляет тело SIP сообщения с явным типом содержимого
type Body struct {
	contentType string
	content     []byte
}

// NewBody создает тело с указанным типом содержимого
func NewBody(contentType string, content []byte) Body {
	return Body{contentType, content}
}

// NewSDPBody создает тело с типом содержимого application/sdp
func NewSDPBody(content string) Body {
	return Body{SDPContentType, []byte(content)}
}

// ContentType возвращает MIME тип содержимого
func (b *Body) ContentType() string {
	return b.contentType
}

// Content возвращает байты содержимого
func (b *Body) Content() []byte {
	return b.content
}
