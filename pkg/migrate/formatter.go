package migrate

import log "github.com/sirupsen/logrus"

// UTCFormatter wraps a logrus formatter and stamps entries in UTC
type UTCFormatter struct {
	log.Formatter
}

func (u UTCFormatter) Format(e *log.Entry) ([]byte, error) {
	e.Time = e.Time.UTC()
	return u.Formatter.Format(e)
}
