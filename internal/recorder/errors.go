package recorder

// AlreadyRecordingError rejects Start while a recording is active
type AlreadyRecordingError struct{}

func (AlreadyRecordingError) Error() string {
	return "recording already in progress"
}

// NotRecordingError rejects Stop when no recording is active
type NotRecordingError struct{}

func (NotRecordingError) Error() string {
	return "no recording in progress"
}
