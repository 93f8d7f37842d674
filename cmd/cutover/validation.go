package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/validation"
)

func validateResourceName(value string) error {
	if len(value) == 0 {
		return errors.New("must be set")
	}

	// used by Kubernetes to validate resource names
	messages := validation.IsDNS1123Subdomain(value)
	if len(messages) > 0 {
		msg := strings.Join(messages, "; ")
		return fmt.Errorf("invalid format: %s", msg)
	}

	return nil
}

func validateNamespaceName(value string) error {
	// used by Kubernetes to validate resource namespace names
	messages := validation.IsDNS1123Label(value)
	if len(messages) > 0 {
		msg := strings.Join(messages, "; ")
		return fmt.Errorf("invalid format: %s", msg)
	}

	return nil
}

func parseNamespacedResourceName(value string) (types.NamespacedName, error) {
	if value == "" {
		return types.NamespacedName{}, errors.New("must be set")
	}

	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return types.NamespacedName{}, errors.New("invalid format; must be NAMESPACE/NAME")
	}

	if err := validateNamespaceName(parts[0]); err != nil {
		return types.NamespacedName{}, fmt.Errorf("invalid namespace name: %w", err)
	}
	if err := validateResourceName(parts[1]); err != nil {
		return types.NamespacedName{}, fmt.Errorf("invalid resource name: %w", err)
	}

	return types.NamespacedName{
		Namespace: parts[0],
		Name:      parts[1],
	}, nil
}

func validateURL(value string) error {
	if value == "" {
		return errors.New("must be set")
	}

	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%q must be a valid URL: %w", value, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use the http or https scheme", value)
	}
	if u.Host == "" {
		return fmt.Errorf("%q must include a host", value)
	}

	return nil
}

func validatePositive(value int) error {
	if value < 1 {
		return errors.New("must be greater than 0")
	}

	return nil
}
