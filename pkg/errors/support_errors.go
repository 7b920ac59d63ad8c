package errors

var (
	ErrConversationClosed   = New(CodeConversationClosed, "conversation is closed")
	ErrConversationNotFound = NotFound("conversation not found")
	ErrMessageNotFound      = NotFound("message not found")
	ErrAttachmentNotFound   = NotFound("attachment not found")
	ErrEmptyMessage         = InvalidArg("message needs a body or an attachment")
	ErrBodyTooLong          = InvalidArg("message body is too long")
	ErrAttachmentType       = InvalidArg("attachment type is not allowed")
	ErrAttachmentEmpty      = InvalidArg("attachment is empty")
	ErrInvalidStatus        = InvalidArg("unknown conversation status")
	ErrInvalidRole          = InvalidArg("unknown sender role")
	ErrInvalidOperator      = InvalidArg("operator reference is required")
	ErrTerminalStatus       = FailedPrecondition("closed conversations cannot change status")
	ErrAttachmentClaimed    = FailedPrecondition("attachment already belongs to a message")
	ErrForbidden            = Forbidden("not allowed for this role")
)

func ErrAttachmentTooLarge(limit string) error {
	return InvalidArg("attachment exceeds " + limit)
}

func ErrInvalidRequester(cause error) error {
	return Wrap(CodeInvalidArgument, "invalid requester", cause)
}

func ErrStorage(cause error) error {
	return Wrap(CodeUnavailable, "storage unavailable", cause)
}
