package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the process-wide logrus logger and returns it.
// Production gets JSON lines; everything else gets the text formatter.
func Init(appEnv, level string) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetOutput(os.Stdout)

	if appEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}
