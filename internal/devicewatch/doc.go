// Package devicewatch lists capture devices and reports camera hotplug
// events from the kernel's udev netlink socket.
package devicewatch
