// Copyright Project Contour Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpsvc

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/quilkin-go/quilkin/internal/workgroup"
)

func TestHTTPService(t *testing.T) {
	svc := Service{
		Addr:        "localhost",
		Port:        18001,
		FieldLogger: logrus.New(),
	}
	svc.ServeMux.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var g workgroup.Group
	g.AddContext(func(ctx context.Context) {
		_ = svc.Start(ctx)
	})
	stopTest := make(chan struct{})
	g.Add(func(stop <-chan struct{}) error {
		<-stopTest
		return nil
	})
	done := make(chan error, 1)
	go func() { done <- g.Run() }()

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://localhost:18001/test")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	close(stopTest)
	<-done
}
