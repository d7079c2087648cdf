package uploads

// NewWithClient exposes the fake-able constructor to black-box tests.
var NewWithClient = newUploader
