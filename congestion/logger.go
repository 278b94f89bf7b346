package congestion

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "congestion")
