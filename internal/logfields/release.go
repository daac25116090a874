package logfields

import "go.uber.org/zap"

func Component(val string) zap.Field {
	return zap.String("component", val)
}

func PullRequest(val int) zap.Field {
	return zap.Int("pagure.pull_request", val)
}

func Author(val string) zap.Field {
	return zap.String("pagure.author", val)
}

func Release(val string) zap.Field {
	return zap.String("fedora.release", val)
}

func Build(val string) zap.Field {
	return zap.String("koji.build", val)
}

func Version(val string) zap.Field {
	return zap.String("distgit.version", val)
}
