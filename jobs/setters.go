package jobs

func SetStatus(status Status) UpdateSetter {
	return func(j *Job) error {
		if !status.IsValid() {
			return ErrInvalidStatus
		}
		j.Status = status
		return nil
	}
}

func SetResult(result *ResultJSON) UpdateSetter {
	return func(j *Job) error {
		j.Result = result
		return nil
	}
}

// Stopped cancels a queued job through the model's transition rules.
func Stopped() UpdateSetter {
	return func(j *Job) error {
		return j.Stop()
	}
}
